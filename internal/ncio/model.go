package ncio

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/inform/internal/grid"
)

// ModelNames maps the hybrid-grid fields to variable names.
type ModelNames struct {
	Time string `yaml:"time"`
	Lat  string `yaml:"lat"`
	Lon  string `yaml:"lon"`
	P0   string `yaml:"p0"`
	PS   string `yaml:"ps"`
	A    string `yaml:"a"`
	B    string `yaml:"b"`
}

// DefaultModelNames follows the CESM history-file conventions.
func DefaultModelNames() ModelNames {
	return ModelNames{
		Time: "time",
		Lat:  "lat",
		Lon:  "lon",
		P0:   "P0",
		PS:   "PS",
		A:    "hyai",
		B:    "hybi",
	}
}

// ModelFile is an open model dataset.
type ModelFile struct {
	*Dataset
	names ModelNames
	times []time.Time
}

// OpenModel opens a model history file.
func OpenModel(path string, names ModelNames) (*ModelFile, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	for _, v := range []string{names.Time, names.Lat, names.Lon, names.P0, names.PS, names.A, names.B} {
		if !d.Has(v) {
			d.Close()
			return nil, fmt.Errorf("%w: %s has no %q", grid.ErrInvalidModel, path, v)
		}
	}
	times, err := d.Times(names.Time)
	if err != nil {
		d.Close()
		return nil, err
	}
	return &ModelFile{Dataset: d, names: names, times: times}, nil
}

// Times returns the model output times.
func (m *ModelFile) Times() []time.Time {
	return m.times
}

// Grid loads the hybrid grid with surface pressure at time index ti.
func (m *ModelFile) Grid(ti int) (*grid.Model, error) {
	out := &grid.Model{}
	var err error
	if out.Lat, err = m.Float64s(m.names.Lat); err != nil {
		return nil, err
	}
	if out.Lon, err = m.Float64s(m.names.Lon); err != nil {
		return nil, err
	}
	if out.A, err = m.Float64s(m.names.A); err != nil {
		return nil, err
	}
	if out.B, err = m.Float64s(m.names.B); err != nil {
		return nil, err
	}
	p0, err := m.Float64s(m.names.P0)
	if err != nil {
		return nil, err
	}
	if len(p0) != 1 {
		return nil, fmt.Errorf("%w: %s has %d values", grid.ErrInvalidModel, m.names.P0, len(p0))
	}
	out.P0 = p0[0]

	var flat []float64
	if lengths := m.Lengths(m.names.PS); len(lengths) == 3 {
		flat, err = m.Record(m.names.PS, ti)
	} else {
		flat, err = m.Float64s(m.names.PS)
	}
	if err != nil {
		return nil, err
	}
	nLat, nLon := len(out.Lat), len(out.Lon)
	if len(flat) != nLat*nLon {
		return nil, fmt.Errorf("%w: %s has %d values for a %dx%d grid", grid.ErrInvalidModel, m.names.PS, len(flat), nLat, nLon)
	}
	out.PS = make([][]float64, nLat)
	for j := range out.PS {
		out.PS[j] = flat[j*nLon : (j+1)*nLon]
	}

	if math.IsNaN(out.P0) {
		return nil, fmt.Errorf("%w: %s is missing", grid.ErrInvalidModel, m.names.P0)
	}
	return out, out.Validate()
}
