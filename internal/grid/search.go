package grid

import (
	"math"
	"sort"
	"time"
)

// nearest returns the index of the axis value closest to x. Ties go to the
// lower index.
func nearest(axis []float64, x float64) int {
	best, bestD := 0, math.Inf(1)
	for i, v := range axis {
		if d := math.Abs(v - x); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// bin returns the index of the half-open interval [axis[k], axis[k+1])
// holding x, i.e. the count of axis values <= x minus one. Values below the
// axis give -1.
func bin(axis []float64, x float64) int {
	return sort.Search(len(axis), func(i int) bool { return axis[i] > x }) - 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ComparisonTimes returns the reference times that also occur in the
// aircraft series, padded by pad before the first and after the last.
// Both inputs must be ascending.
func ComparisonTimes(ref, aircraft []time.Time, pad time.Duration) ([]time.Time, error) {
	var common []time.Time
	j := 0
	for _, t := range ref {
		for j < len(aircraft) && aircraft[j].Before(t) {
			j++
		}
		if j < len(aircraft) && aircraft[j].Equal(t) {
			if len(common) == 0 || !common[len(common)-1].Equal(t) {
				common = append(common, t)
			}
		}
	}
	if len(common) == 0 {
		return nil, ErrNoCommonTimes
	}

	out := make([]time.Time, 0, len(common)+2)
	out = append(out, common[0].Add(-pad))
	out = append(out, common...)
	out = append(out, common[len(common)-1].Add(pad))
	return out, nil
}
