package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/inform/internal/storage"
)

// RunModel is a row of inform_runs.
type RunModel struct {
	ID                 uuid.UUID `gorm:"primaryKey;column:id;type:uuid"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	Flight             string    `gorm:"column:flight"`
	Model              string    `gorm:"column:model"`
	StartTime          time.Time `gorm:"column:start_time"`
	EndTime            time.Time `gorm:"column:end_time"`
	RowCount           int       `gorm:"column:row_count"`
	SegmentCount       int       `gorm:"column:segment_count"`
	CellCount          int       `gorm:"column:cell_count"`
	MinInCloudAltitude float64   `gorm:"column:min_in_cloud_altitude"`
	Warnings           []byte    `gorm:"column:warnings"`
}

func (RunModel) TableName() string { return "inform_runs" }

// BlockModel is a row of inform_blocks.
type BlockModel struct {
	RunID      uuid.UUID `gorm:"primaryKey;column:run_id;type:uuid"`
	Kind       string    `gorm:"primaryKey;column:kind"`
	Seq        int       `gorm:"primaryKey;column:seq;autoIncrement:false"`
	Label      string    `gorm:"column:label"`
	StartTime  time.Time `gorm:"column:start_time"`
	EndTime    time.Time `gorm:"column:end_time"`
	LowerBound float64   `gorm:"column:lower_bound"`
	UpperBound float64   `gorm:"column:upper_bound"`
	Location   string    `gorm:"column:location"`
	BlockID    int       `gorm:"column:block_id"`
	RowCount   int       `gorm:"column:row_count"`
}

func (BlockModel) TableName() string { return "inform_blocks" }

// CellModel is a row of the inform_cells hypertable.
type CellModel struct {
	Time      time.Time `gorm:"column:time"`
	RunID     uuid.UUID `gorm:"column:run_id;type:uuid"`
	Seq       int       `gorm:"column:seq"`
	Latitude  float64   `gorm:"column:latitude"`
	Longitude float64   `gorm:"column:longitude"`
	Altitude  float64   `gorm:"column:altitude"`
	Vals      []byte    `gorm:"column:vals"`
}

func (CellModel) TableName() string { return "inform_cells" }

func NewRunModel(r storage.Run) (RunModel, error) {
	w, err := storage.EncodeWarnings(r.Warnings)
	if err != nil {
		return RunModel{}, err
	}
	return RunModel{
		ID:                 r.ID,
		CreatedAt:          r.CreatedAt,
		Flight:             r.Flight,
		Model:              r.Model,
		StartTime:          r.Start,
		EndTime:            r.End,
		RowCount:           r.Rows,
		SegmentCount:       r.Segments,
		CellCount:          r.Cells,
		MinInCloudAltitude: r.MinInCloudAltitude,
		Warnings:           w,
	}, nil
}

func (m RunModel) Run() (storage.Run, error) {
	w, err := storage.DecodeWarnings(m.Warnings)
	if err != nil {
		return storage.Run{}, err
	}
	return storage.Run{
		ID:                 m.ID,
		CreatedAt:          m.CreatedAt.UTC(),
		Flight:             m.Flight,
		Model:              m.Model,
		Start:              m.StartTime.UTC(),
		End:                m.EndTime.UTC(),
		Rows:               m.RowCount,
		Segments:           m.SegmentCount,
		Cells:              m.CellCount,
		MinInCloudAltitude: m.MinInCloudAltitude,
		Warnings:           w,
	}, nil
}

func NewBlockModel(b storage.BlockRecord) BlockModel {
	return BlockModel{
		RunID:      b.RunID,
		Kind:       string(b.Kind),
		Seq:        b.Seq,
		Label:      b.Label,
		StartTime:  b.Start,
		EndTime:    b.End,
		LowerBound: b.Lower,
		UpperBound: b.Upper,
		Location:   b.Location,
		BlockID:    b.BlockID,
		RowCount:   b.Rows,
	}
}

func (m BlockModel) Record() storage.BlockRecord {
	return storage.BlockRecord{
		RunID:    m.RunID,
		Kind:     storage.BlockKind(m.Kind),
		Seq:      m.Seq,
		Label:    m.Label,
		Start:    m.StartTime.UTC(),
		End:      m.EndTime.UTC(),
		Lower:    m.LowerBound,
		Upper:    m.UpperBound,
		Location: m.Location,
		BlockID:  m.BlockID,
		Rows:     m.RowCount,
	}
}

func NewCellModel(c storage.CellRecord) (CellModel, error) {
	vals, err := storage.EncodeValues(c.Values)
	if err != nil {
		return CellModel{}, err
	}
	return CellModel{
		Time:      c.Time,
		RunID:     c.RunID,
		Seq:       c.Seq,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Altitude:  c.Altitude,
		Vals:      vals,
	}, nil
}

func (m CellModel) Record() (storage.CellRecord, error) {
	vals, err := storage.DecodeValues(m.Vals)
	if err != nil {
		return storage.CellRecord{}, err
	}
	return storage.CellRecord{
		RunID:     m.RunID,
		Seq:       m.Seq,
		Time:      m.Time.UTC(),
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Altitude:  m.Altitude,
		Values:    vals,
	}, nil
}
