package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/grid"
	"github.com/chrissnell/inform/internal/obs"
	"github.com/chrissnell/inform/internal/regime"
)

// Run summarizes one pipeline execution.
type Run struct {
	ID        uuid.UUID `json:"id" msgpack:"id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	Flight    string    `json:"flight" msgpack:"flight"`
	Model     string    `json:"model,omitempty" msgpack:"model,omitempty"`
	Start     time.Time `json:"start_time" msgpack:"start_time"`
	End       time.Time `json:"end_time" msgpack:"end_time"`
	Rows      int       `json:"rows" msgpack:"rows"`
	Segments  int       `json:"segments" msgpack:"segments"`
	Cells     int       `json:"cells" msgpack:"cells"`
	// MinInCloudAltitude is NaN when the flight never entered cloud.
	MinInCloudAltitude float64  `json:"min_in_cloud_altitude" msgpack:"min_in_cloud_altitude"`
	Warnings           []string `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// BlockKind separates the block tables.
type BlockKind string

const (
	KindFlight  BlockKind = "flight"
	KindCloud   BlockKind = "cloud"
	KindSegment BlockKind = "segment"
)

// BlockRecord is a flight block, cloud block or extracted segment.
type BlockRecord struct {
	RunID uuid.UUID `json:"run_id" msgpack:"run_id"`
	Kind  BlockKind `json:"kind" msgpack:"kind"`
	Seq   int       `json:"seq" msgpack:"seq"`
	// Label is the flight type for flight blocks and the category for
	// segments. Cloud blocks have none.
	Label    string    `json:"label,omitempty" msgpack:"label,omitempty"`
	Start    time.Time `json:"start_time" msgpack:"start_time"`
	End      time.Time `json:"end_time" msgpack:"end_time"`
	Lower    float64   `json:"lower_bound" msgpack:"lower_bound"`
	Upper    float64   `json:"upper_bound" msgpack:"upper_bound"`
	Location string    `json:"location,omitempty" msgpack:"location,omitempty"`
	// BlockID and Rows are set for segments only.
	BlockID int `json:"block_id,omitempty" msgpack:"block_id,omitempty"`
	Rows    int `json:"rows,omitempty" msgpack:"rows,omitempty"`
}

// CellRecord is one populated grid cell.
type CellRecord struct {
	RunID     uuid.UUID          `json:"run_id" msgpack:"run_id"`
	Seq       int                `json:"seq" msgpack:"seq"`
	Time      time.Time          `json:"time" msgpack:"time"`
	Latitude  float64            `json:"latitude" msgpack:"latitude"`
	Longitude float64            `json:"longitude" msgpack:"longitude"`
	Altitude  float64            `json:"altitude" msgpack:"altitude"`
	Values    map[string]float64 `json:"values" msgpack:"values"`
}

// RunResults is everything SaveRun persists.
type RunResults struct {
	Run    Run
	Blocks []BlockRecord
	Cells  []CellRecord
}

// NewRunResults collects the outputs of one run under a fresh id. product
// may be nil when gridding was skipped.
func NewRunResults(flight, model string, roles obs.Roles, res *regime.Result, segs blocks.Collections, product *grid.Product) *RunResults {
	id := uuid.New()
	out := &RunResults{
		Run: Run{
			ID:                 id,
			CreatedAt:          time.Now().UTC(),
			Flight:             flight,
			Model:              model,
			MinInCloudAltitude: math.NaN(),
		},
	}
	if res != nil {
		out.Run.Rows = res.Table.Len()
		out.Run.Start = res.Table.Start()
		out.Run.End = res.Table.End()
		out.Run.MinInCloudAltitude = res.MinInCloudAltitude
		for _, w := range res.Warnings {
			out.Run.Warnings = append(out.Run.Warnings, w.Error())
		}
		out.Blocks = append(out.Blocks, FlightBlockRecords(id, res.FlightBlocks)...)
		out.Blocks = append(out.Blocks, CloudBlockRecords(id, res.CloudBlocks)...)
	}
	seg := SegmentRecords(id, segs, roles.Column(obs.RoleAltitude))
	out.Run.Segments = len(seg)
	out.Blocks = append(out.Blocks, seg...)
	if product != nil {
		out.Cells = CellRecords(id, product.Cells)
		out.Run.Cells = len(out.Cells)
	}
	return out
}

// FlightBlockRecords converts flight blocks to records in time order.
func FlightBlockRecords(id uuid.UUID, in []regime.FlightBlock) []BlockRecord {
	out := make([]BlockRecord, len(in))
	for i, b := range in {
		out[i] = BlockRecord{
			RunID: id, Kind: KindFlight, Seq: i, Label: string(b.Type),
			Start: b.Start, End: b.End, Lower: b.Lower, Upper: b.Upper,
			Location: string(b.Location),
		}
	}
	return out
}

// CloudBlockRecords converts cloud blocks to records in altitude order.
func CloudBlockRecords(id uuid.UUID, in []regime.CloudBlock) []BlockRecord {
	out := make([]BlockRecord, len(in))
	for i, b := range in {
		out[i] = BlockRecord{
			RunID: id, Kind: KindCloud, Seq: i,
			Start: b.Start, End: b.End, Lower: b.Lower, Upper: b.Upper,
			Location: string(b.Location),
		}
	}
	return out
}

// SegmentRecords flattens the collections in category order. Altitude
// bounds come from the column alt and are NaN when the segment has no
// finite altitude.
func SegmentRecords(id uuid.UUID, segs blocks.Collections, alt string) []BlockRecord {
	var out []BlockRecord
	for _, c := range blocks.Categories {
		for _, s := range segs[c] {
			r := BlockRecord{
				RunID: id, Kind: KindSegment, Seq: len(out), Label: string(c),
				Start: s.Start(), End: s.End(),
				Lower: math.NaN(), Upper: math.NaN(),
				Location: string(s.Label.Location),
				BlockID:  s.BlockID, Rows: len(s.Rows),
			}
			if lo, hi, ok := s.Table.Range(alt); ok {
				r.Lower, r.Upper = lo, hi
			}
			out = append(out, r)
		}
	}
	return out
}

// CellRecords converts populated grid cells to records, copying their values.
func CellRecords(id uuid.UUID, in []grid.Cell) []CellRecord {
	out := make([]CellRecord, len(in))
	for i, c := range in {
		vals := make(map[string]float64, len(c.Values))
		for k, v := range c.Values {
			vals[k] = v
		}
		out[i] = CellRecord{
			RunID: id, Seq: i, Time: c.Time,
			Latitude: c.Latitude, Longitude: c.Longitude, Altitude: c.Altitude,
			Values: vals,
		}
	}
	return out
}

// EncodeValues packs cell values for a blob column.
func EncodeValues(v map[string]float64) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode cell values: %w", err)
	}
	return b, nil
}

// DecodeValues reverses EncodeValues.
func DecodeValues(b []byte) (map[string]float64, error) {
	v := map[string]float64{}
	if len(b) == 0 {
		return v, nil
	}
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode cell values: %w", err)
	}
	return v, nil
}

// EncodeWarnings packs run warnings for a blob column.
func EncodeWarnings(w []string) ([]byte, error) {
	if len(w) == 0 {
		return nil, nil
	}
	return msgpack.Marshal(w)
}

// DecodeWarnings reverses EncodeWarnings.
func DecodeWarnings(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var w []string
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	return w, nil
}
