package join

import (
	"fmt"
	"time"

	"github.com/chrissnell/inform/internal/obs"
)

// SeriesSource is a time-indexed reference dataset, such as a radar echo
// classification or probe-derived number concentrations.
type SeriesSource interface {
	Name() string
	Times() []time.Time
	Variables() []string
	LongName(variable string) string
	Value(variable string, i int) (float64, error)
}

// FieldSource is a gridded reference dataset indexed by time and grid
// point, such as a reanalysis.
type FieldSource interface {
	Name() string
	Times() []time.Time
	// Points returns the flattened grid-point coordinates in degrees.
	Points() (lat, lon []float64)
	Variables() []string
	LongName(variable string) string
	Value(variable string, timeIdx, pointIdx int) (float64, error)
}

// TableSeries exposes an observation table as a SeriesSource.
type TableSeries struct {
	Label string
	Table *obs.Table
	// Only restricts the joined variables; empty means every column.
	Only []string
}

func (s *TableSeries) Name() string {
	return s.Label
}

func (s *TableSeries) Times() []time.Time {
	return s.Table.Times()
}

func (s *TableSeries) Variables() []string {
	if len(s.Only) > 0 {
		return s.Only
	}
	return s.Table.Columns()
}

func (s *TableSeries) LongName(v string) string {
	return s.Table.LongName(v)
}

func (s *TableSeries) Value(v string, i int) (float64, error) {
	c, ok := s.Table.Column(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no variable %q", obs.ErrExternalLookup, s.Label, v)
	}
	return c[i], nil
}
