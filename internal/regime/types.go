package regime

import (
	"errors"
	"time"

	"github.com/chrissnell/inform/internal/obs"
)

// FlightType separates level legs from profiles.
type FlightType string

const (
	Level   FlightType = "level"
	Profile FlightType = "profile"
)

// CloudStatus tells whether a row sits inside a cloud block.
type CloudStatus string

const (
	InCloud    CloudStatus = "in-cloud"
	OutOfCloud CloudStatus = "out-of-cloud"
)

// Location is the altitude regime of a row or block.
type Location string

const (
	BoundaryLayer Location = "BL"
	Free          Location = "Free"
)

var (
	// ErrNoStableSignal means no level leg survived filtering, so rows can't
	// be attributed to flight blocks.
	ErrNoStableSignal = errors.New("no stable altitude signal")

	// ErrMergeInvariant means merged cloud blocks were left unsorted or
	// overlapping.
	ErrMergeInvariant = errors.New("cloud block merge invariant violated")
)

// FlightBlock is a level leg or a profile.
type FlightBlock struct {
	Type     FlightType `json:"flight_type"`
	Start    time.Time  `json:"start_time"`
	End      time.Time  `json:"end_time"`
	Lower    float64    `json:"lower_bound"`
	Upper    float64    `json:"upper_bound"`
	Location Location   `json:"location"`
}

// Duration is End minus Start.
func (b FlightBlock) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// CloudBlock is a merged altitude/time box of cloud detections.
type CloudBlock struct {
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	Lower    float64   `json:"lower_bound"`
	Upper    float64   `json:"upper_bound"`
	Location Location  `json:"location"`
}

// Duration is End minus Start.
func (b CloudBlock) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Contains reports whether a sample at altitude alt and time t falls inside
// the block. Bounds are inclusive.
func (b CloudBlock) Contains(alt float64, t time.Time) bool {
	return alt >= b.Lower && alt <= b.Upper && !t.Before(b.Start) && !t.After(b.End)
}

// Label is the composite classification of one row.
type Label struct {
	FlightType  FlightType  `json:"flight_type"`
	CloudStatus CloudStatus `json:"cloud_status"`
	Location    Location    `json:"location"`
	BlockID     int         `json:"block_id"`
}

func (l Label) sameClass(o Label) bool {
	return l.FlightType == o.FlightType && l.CloudStatus == o.CloudStatus && l.Location == o.Location
}

// Result is the output of Classify. The input table is not modified; Table
// is the same rows with one Label per row.
type Result struct {
	Table              *obs.Table
	Labels             []Label
	FlightBlocks       []FlightBlock
	CloudBlocks        []CloudBlock
	MinInCloudAltitude float64
	// Warnings collects recoverable problems such as missing cloud-probe
	// columns.
	Warnings []error
}

// BlockIDs returns the distinct block ids in ascending order.
func (r *Result) BlockIDs() []int {
	var ids []int
	for i, l := range r.Labels {
		if i == 0 || l.BlockID != r.Labels[i-1].BlockID {
			ids = append(ids, l.BlockID)
		}
	}
	return ids
}
