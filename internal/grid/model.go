package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidModel reports an inconsistent hybrid-coordinate model grid.
var ErrInvalidModel = errors.New("invalid model grid")

// Model is a hybrid sigma-pressure model grid. Level pressure at a column
// is P0*A[k] + B[k]*PS, in the units of P0 and PS.
type Model struct {
	Lat []float64
	Lon []float64
	P0  float64
	// PS is surface pressure indexed [lat][lon].
	PS [][]float64
	// A and B are the interface coefficients, one per level, ordered so
	// pressure increases with level index.
	A []float64
	B []float64
}

// Levels returns the number of vertical levels.
func (m *Model) Levels() int {
	return len(m.A)
}

// Validate checks axis ordering and array shapes.
func (m *Model) Validate() error {
	switch {
	case len(m.Lat) < 2 || len(m.Lon) < 2:
		return fmt.Errorf("%w: need at least two latitudes and longitudes", ErrInvalidModel)
	case len(m.A) < 2 || len(m.A) != len(m.B):
		return fmt.Errorf("%w: %d A and %d B coefficients", ErrInvalidModel, len(m.A), len(m.B))
	case len(m.PS) != len(m.Lat):
		return fmt.Errorf("%w: surface pressure has %d rows for %d latitudes", ErrInvalidModel, len(m.PS), len(m.Lat))
	case math.IsNaN(m.P0):
		return fmt.Errorf("%w: reference pressure is NaN", ErrInvalidModel)
	}
	for j, row := range m.PS {
		if len(row) != len(m.Lon) {
			return fmt.Errorf("%w: surface pressure row %d has %d values for %d longitudes", ErrInvalidModel, j, len(row), len(m.Lon))
		}
	}
	if !sort.Float64sAreSorted(m.Lat) || !sort.Float64sAreSorted(m.Lon) {
		return fmt.Errorf("%w: latitude and longitude axes must be ascending", ErrInvalidModel)
	}
	return nil
}

// Profile returns the level pressures of one column multiplied by scale.
func (m *Model) Profile(lat, lon int, scale float64) []float64 {
	ps := m.PS[lat][lon]
	out := make([]float64, len(m.A))
	for k := range m.A {
		out[k] = (m.P0*m.A[k] + m.B[k]*ps) * scale
	}
	return out
}

// Wraps reports whether the longitude axis runs 0-360 rather than -180-180.
func (m *Model) Wraps() bool {
	return len(m.Lon) > 0 && m.Lon[len(m.Lon)-1] > 180
}
