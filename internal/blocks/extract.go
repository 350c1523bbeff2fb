// Package blocks pulls the scientifically useful flight segments out of a
// classified flight.
package blocks

import (
	"time"

	"github.com/chrissnell/inform/internal/obs"
	"github.com/chrissnell/inform/internal/regime"
)

// Category names one of the extracted segment collections.
type Category string

const (
	LevelBL           Category = "Level BL"
	InCloudProfiles   Category = "In-Cloud Profiles"
	InCloudLevelFT    Category = "In-Cloud Level FT"
	OutOfCloudLevelFT Category = "Out-of-cloud Level FT"
)

// Categories lists every category in reporting order.
var Categories = []Category{LevelBL, InCloudProfiles, InCloudLevelFT, OutOfCloudLevelFT}

// Config holds the per-category filters.
type Config struct {
	// MinProfileExcursion drops in-cloud profiles spanning no more altitude
	// than this.
	MinProfileExcursion float64
	// MinLevelFTDuration drops out-of-cloud free-troposphere legs lasting no
	// longer than this.
	MinLevelFTDuration time.Duration
}

// DefaultConfig returns the standard filters.
func DefaultConfig() Config {
	return Config{
		MinProfileExcursion: 30,
		MinLevelFTDuration:  180 * time.Second,
	}
}

// Segment is the set of rows sharing one composite block id.
type Segment struct {
	BlockID int
	Label   regime.Label
	Rows    []int
	Table   *obs.Table
}

// Start returns the time of the first row.
func (s Segment) Start() time.Time {
	return s.Table.Start()
}

// End returns the time of the last row.
func (s Segment) End() time.Time {
	return s.Table.End()
}

// Duration is the time between the first and last row.
func (s Segment) Duration() time.Duration {
	return s.End().Sub(s.Start())
}

// Collections maps each category to its segments in block id order.
type Collections map[Category][]Segment

// Count returns the total number of segments.
func (c Collections) Count() int {
	n := 0
	for _, segs := range c {
		n += len(segs)
	}
	return n
}

// Extract groups the rows of a classified flight by block id and files the
// qualifying groups under their category. Every category is present in the
// result, possibly empty.
func Extract(res *regime.Result, roles obs.Roles, cfg Config) (Collections, error) {
	if err := res.Table.Require(roles, obs.RoleAltitude); err != nil {
		return nil, err
	}
	alt, _ := res.Table.Column(roles.Column(obs.RoleAltitude))

	groups := group(res)

	out := make(Collections, len(Categories))
	for _, c := range Categories {
		out[c] = []Segment{}
	}

	var levelBL []Segment
	for _, g := range groups {
		l := g.Label
		switch {
		case l.FlightType == regime.Level && l.Location == regime.BoundaryLayer:
			levelBL = append(levelBL, g)

		case l.CloudStatus == regime.InCloud && l.FlightType == regime.Profile:
			lo, hi, ok := rowRange(alt, g.Rows)
			if ok && hi-lo > cfg.MinProfileExcursion {
				out[InCloudProfiles] = append(out[InCloudProfiles], g)
			}

		case l.CloudStatus == regime.InCloud && l.FlightType == regime.Level && l.Location == regime.Free:
			out[InCloudLevelFT] = append(out[InCloudLevelFT], g)

		case l.CloudStatus == regime.OutOfCloud && l.FlightType == regime.Level && l.Location == regime.Free:
			if res.Table.Time(g.Rows[len(g.Rows)-1]).Sub(res.Table.Time(g.Rows[0])) > cfg.MinLevelFTDuration {
				out[OutOfCloudLevelFT] = append(out[OutOfCloudLevelFT], g)
			}
		}
	}

	// The first and last boundary-layer legs are takeoff and landing.
	if len(levelBL) > 2 {
		out[LevelBL] = levelBL[1 : len(levelBL)-1]
	}

	for c, segs := range out {
		for i := range segs {
			segs[i].Table = res.Table.Subset(segs[i].Rows)
		}
		out[c] = segs
	}
	return out, nil
}

// group splits the labelled rows into one segment per block id, in id
// order. Block ids are contiguous, so each group is a single row span.
func group(res *regime.Result) []Segment {
	var out []Segment
	for i, l := range res.Labels {
		if len(out) == 0 || out[len(out)-1].BlockID != l.BlockID {
			out = append(out, Segment{BlockID: l.BlockID, Label: l})
		}
		last := &out[len(out)-1]
		last.Rows = append(last.Rows, i)
	}
	return out
}

func rowRange(v []float64, rows []int) (lo, hi float64, ok bool) {
	sub := make([]float64, len(rows))
	for i, r := range rows {
		sub[i] = v[r]
	}
	return obs.FiniteRange(sub)
}
