package restserver

import (
	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/pkg/responseformat"
)

func runSummary(r storage.Run) RunSummary {
	return RunSummary{
		ID:                 r.ID.String(),
		CreatedAt:          r.CreatedAt,
		Flight:             r.Flight,
		Model:              r.Model,
		Start:              r.Start,
		End:                r.End,
		Rows:               r.Rows,
		Segments:           r.Segments,
		Cells:              r.Cells,
		MinInCloudAltitude: responseformat.Float(r.MinInCloudAltitude),
		Warnings:           r.Warnings,
	}
}

func block(b storage.BlockRecord) Block {
	return Block{
		Kind:     string(b.Kind),
		Seq:      b.Seq,
		Label:    b.Label,
		Start:    b.Start,
		End:      b.End,
		Duration: b.End.Sub(b.Start).Seconds(),
		Lower:    responseformat.Float(b.Lower),
		Upper:    responseformat.Float(b.Upper),
		Location: b.Location,
		BlockID:  b.BlockID,
		Rows:     b.Rows,
	}
}

func cell(c storage.CellRecord) Cell {
	return Cell{
		Seq:       c.Seq,
		Timestamp: c.Time.UnixMilli(),
		Latitude:  responseformat.Float(c.Latitude),
		Longitude: responseformat.Float(c.Longitude),
		Altitude:  responseformat.Float(c.Altitude),
		Values:    responseformat.Floats(c.Values),
	}
}
