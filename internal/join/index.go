package join

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// TimeIndex finds the nearest timestamp in a reference series.
type TimeIndex struct {
	times []time.Time
	// order maps sorted position to original index.
	order []int
}

// NewTimeIndex indexes times, which need not be sorted.
func NewTimeIndex(times []time.Time) *TimeIndex {
	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})
	sorted := make([]time.Time, len(times))
	for i, o := range order {
		sorted[i] = times[o]
	}
	return &TimeIndex{times: sorted, order: order}
}

// Len returns the number of indexed timestamps.
func (x *TimeIndex) Len() int {
	return len(x.times)
}

// Nearest returns the original index of the timestamp closest to t, if it
// lies within tol. Ties go to the earlier timestamp.
func (x *TimeIndex) Nearest(t time.Time, tol time.Duration) (int, bool) {
	n := len(x.times)
	if n == 0 {
		return 0, false
	}
	i := sort.Search(n, func(i int) bool { return !x.times[i].Before(t) })

	best := -1
	var bestD time.Duration
	for _, c := range []int{i - 1, i} {
		if c < 0 || c >= n {
			continue
		}
		d := absDuration(x.times[c].Sub(t))
		if best < 0 || d < bestD {
			best, bestD = c, d
		}
	}
	if bestD > tol {
		return 0, false
	}
	return x.order[best], true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// SpatialIndex finds the nearest reference grid point to a position. Points
// are placed on the unit sphere so nearness follows great-circle distance.
type SpatialIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewSpatialIndex builds a k-d tree over parallel latitude and longitude
// slices, in degrees. Points with a non-finite coordinate are skipped.
func NewSpatialIndex(lat, lon []float64) *SpatialIndex {
	pts := make(gridPoints, 0, len(lat))
	for i := range lat {
		if math.IsNaN(lat[i]) || math.IsNaN(lon[i]) || math.IsInf(lat[i], 0) || math.IsInf(lon[i], 0) {
			continue
		}
		pts = append(pts, newGridPoint(lat[i], lon[i], i))
	}
	if len(pts) == 0 {
		return &SpatialIndex{}
	}
	return &SpatialIndex{tree: kdtree.New(pts, false), n: len(pts)}
}

// Len returns the number of indexed points.
func (s *SpatialIndex) Len() int {
	return s.n
}

// Nearest returns the index of the closest point and its great-circle
// distance in kilometres. ok is false for an empty index or a non-finite
// query.
func (s *SpatialIndex) Nearest(lat, lon float64) (idx int, km float64, ok bool) {
	if s.tree == nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, false
	}
	got, chord2 := s.tree.Nearest(newGridPoint(lat, lon, -1))
	if got == nil {
		return 0, 0, false
	}
	chord := math.Sqrt(chord2)
	return got.(gridPoint).idx, 2 * earthRadiusKm * math.Asin(math.Min(1, chord/2)), true
}

const earthRadiusKm = 6371.0

type gridPoint struct {
	xyz [3]float64
	idx int
}

func newGridPoint(lat, lon float64, idx int) gridPoint {
	phi, lambda := lat*math.Pi/180, lon*math.Pi/180
	return gridPoint{
		xyz: [3]float64{
			math.Cos(phi) * math.Cos(lambda),
			math.Cos(phi) * math.Sin(lambda),
			math.Sin(phi),
		},
		idx: idx,
	}
}

func (p gridPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.xyz[d] - c.(gridPoint).xyz[d]
}

func (p gridPoint) Dims() int {
	return 3
}

// Distance is the squared chord length, matching kdtree.Point.
func (p gridPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(gridPoint)
	var sum float64
	for d := range p.xyz {
		diff := p.xyz[d] - q.xyz[d]
		sum += diff * diff
	}
	return sum
}

type gridPoints []gridPoint

func (p gridPoints) Index(i int) kdtree.Comparable {
	return p[i]
}

func (p gridPoints) Len() int {
	return len(p)
}

func (p gridPoints) Pivot(d kdtree.Dim) int {
	return plane{gridPoints: p, Dim: d}.Pivot()
}

func (p gridPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

type plane struct {
	kdtree.Dim
	gridPoints
}

func (p plane) Less(i, j int) bool {
	return p.gridPoints[i].xyz[p.Dim] < p.gridPoints[j].xyz[p.Dim]
}

func (p plane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.gridPoints = p.gridPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.gridPoints[i], p.gridPoints[j] = p.gridPoints[j], p.gridPoints[i]
}
