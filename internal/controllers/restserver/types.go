package restserver

import (
	"time"

	"github.com/chrissnell/inform/pkg/responseformat"
)

// RunSummary is a stored run as returned by the API.
type RunSummary struct {
	ID                 string               `json:"id"`
	CreatedAt          time.Time            `json:"created_at"`
	Flight             string               `json:"flight"`
	Model              string               `json:"model,omitempty"`
	Start              time.Time            `json:"start_time"`
	End                time.Time            `json:"end_time"`
	Rows               int                  `json:"rows"`
	Segments           int                  `json:"segments"`
	Cells              int                  `json:"cells"`
	MinInCloudAltitude responseformat.Float `json:"min_in_cloud_altitude"`
	Warnings           []string             `json:"warnings,omitempty"`
}

// Block is a flight block, cloud block or segment.
type Block struct {
	Kind     string               `json:"kind"`
	Seq      int                  `json:"seq"`
	Label    string               `json:"label,omitempty"`
	Start    time.Time            `json:"start_time"`
	End      time.Time            `json:"end_time"`
	Duration float64              `json:"duration_s"`
	Lower    responseformat.Float `json:"lower_bound"`
	Upper    responseformat.Float `json:"upper_bound"`
	Location string               `json:"location,omitempty"`
	BlockID  int                  `json:"block_id,omitempty"`
	Rows     int                  `json:"rows,omitempty"`
}

// Cell is one populated grid cell. Timestamp is Unix milliseconds.
type Cell struct {
	Seq       int                             `json:"seq"`
	Timestamp int64                           `json:"ts"`
	Latitude  responseformat.Float            `json:"latitude"`
	Longitude responseformat.Float            `json:"longitude"`
	Altitude  responseformat.Float            `json:"altitude"`
	Values    map[string]responseformat.Float `json:"values"`
}

// RunDetail bundles a run with counts of its blocks by kind.
type RunDetail struct {
	RunSummary
	BlockCounts map[string]int `json:"block_counts"`
}
