// Package window finds and merges contiguous runs in an ordered time series.
package window

import (
	"math"
	"sort"
	"time"
)

// Summary aggregates the finite values of one column over an interval.
type Summary struct {
	Min   float64
	Max   float64
	Sum   float64
	Count int
}

// Mean returns the mean of the summarised values, or NaN when empty.
func (s Summary) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}

func (s Summary) add(v float64) Summary {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}
	if s.Count == 0 || v > s.Max {
		s.Max = v
	}
	s.Sum += v
	s.Count++
	return s
}

func (s Summary) merge(o Summary) Summary {
	switch {
	case o.Count == 0:
		return s
	case s.Count == 0:
		return o
	}
	return Summary{
		Min:   math.Min(s.Min, o.Min),
		Max:   math.Max(s.Max, o.Max),
		Sum:   s.Sum + o.Sum,
		Count: s.Count + o.Count,
	}
}

// Interval is a contiguous span of rows. Lower and Upper bound the values
// of the bound column over the span; they are NaN when it held none.
type Interval struct {
	Start    time.Time
	End      time.Time
	FirstRow int
	LastRow  int
	Lower    float64
	Upper    float64
	Category string
	Stats    map[string]Summary
}

// Duration is End minus Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Excursion is Upper minus Lower.
func (iv Interval) Excursion() float64 {
	return iv.Upper - iv.Lower
}

// Contains reports whether t lies in [Start, End].
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// Union returns the smallest interval covering a and b. The category of a
// is kept.
func Union(a, b Interval) Interval {
	out := a
	if b.Start.Before(out.Start) {
		out.Start = b.Start
	}
	if b.End.After(out.End) {
		out.End = b.End
	}
	if b.FirstRow < out.FirstRow {
		out.FirstRow = b.FirstRow
	}
	if b.LastRow > out.LastRow {
		out.LastRow = b.LastRow
	}
	out.Lower = nanMin(a.Lower, b.Lower)
	out.Upper = nanMax(a.Upper, b.Upper)

	if len(a.Stats) > 0 || len(b.Stats) > 0 {
		out.Stats = make(map[string]Summary, len(a.Stats))
		for k, v := range a.Stats {
			out.Stats[k] = v
		}
		for k, v := range b.Stats {
			out.Stats[k] = out.Stats[k].merge(v)
		}
	}
	return out
}

// Runs returns the maximal runs of consecutive rows where pred is true, in
// row order. bound may be nil; extra columns are summarised per run.
func Runs(times []time.Time, pred []bool, bound []float64, extra map[string][]float64) []Interval {
	var out []Interval
	n := len(pred)
	for i := 0; i < n; {
		if !pred[i] {
			i++
			continue
		}
		j := i
		for j+1 < n && pred[j+1] {
			j++
		}
		out = append(out, summarise(times, i, j, bound, extra))
		i = j + 1
	}
	return out
}

func summarise(times []time.Time, first, last int, bound []float64, extra map[string][]float64) Interval {
	iv := Interval{
		Start:    times[first],
		End:      times[last],
		FirstRow: first,
		LastRow:  last,
		Lower:    math.NaN(),
		Upper:    math.NaN(),
	}
	for r := first; r <= last; r++ {
		if times[r].Before(iv.Start) {
			iv.Start = times[r]
		}
		if times[r].After(iv.End) {
			iv.End = times[r]
		}
	}
	if bound != nil {
		var s Summary
		for r := first; r <= last; r++ {
			s = s.add(bound[r])
		}
		if s.Count > 0 {
			iv.Lower, iv.Upper = s.Min, s.Max
		}
	}
	if len(extra) > 0 {
		iv.Stats = make(map[string]Summary, len(extra))
		for name, col := range extra {
			var s Summary
			for r := first; r <= last; r++ {
				s = s.add(col[r])
			}
			iv.Stats[name] = s
		}
	}
	return iv
}

// FilterDuration keeps intervals whose duration strictly exceeds min.
func FilterDuration(in []Interval, min time.Duration) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.Duration() > min {
			out = append(out, iv)
		}
	}
	return out
}

// FilterExcursion keeps intervals whose bound excursion strictly exceeds min.
func FilterExcursion(in []Interval, min float64) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.Excursion() > min {
			out = append(out, iv)
		}
	}
	return out
}

// MergeByGap orders intervals by start time and merges consecutive
// intervals of the same category when the time between one's end and the
// next one's start is at most gap.
func MergeByGap(in []Interval, gap time.Duration) []Interval {
	if len(in) == 0 {
		return []Interval{}
	}
	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		prev := &out[len(out)-1]
		if cur.Category == prev.Category && cur.Start.Sub(prev.End) <= gap {
			*prev = Union(*prev, cur)
			continue
		}
		out = append(out, cur)
	}
	return out
}

func nanMin(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Min(a, b)
}

func nanMax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	}
	return math.Max(a, b)
}
