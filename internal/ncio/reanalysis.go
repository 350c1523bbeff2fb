package ncio

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chrissnell/inform/internal/obs"
)

// ReanalysisNames maps the reanalysis coordinates to variable names.
type ReanalysisNames struct {
	Time string `yaml:"time"`
	Lat  string `yaml:"lat"`
	Lon  string `yaml:"lon"`
}

// DefaultReanalysisNames follows the ERA5 single-level conventions.
func DefaultReanalysisNames() ReanalysisNames {
	return ReanalysisNames{Time: "time", Lat: "latitude", Lon: "longitude"}
}

const slabCacheSize = 32

type slabKey struct {
	variable string
	time     int
}

// Reanalysis serves (time, lat, lon) fields of a gridded reanalysis file
// as a join.FieldSource. Time slices are read on demand.
type Reanalysis struct {
	*Dataset
	label    string
	times    []time.Time
	lat, lon []float64
	vars     []string
	slabs    *lru.Cache[slabKey, []float64]
}

// OpenReanalysis opens a reanalysis file. Only (time, lat, lon) variables
// are served; only, when non-empty, narrows them further.
func OpenReanalysis(path, label string, names ReanalysisNames, only []string) (*Reanalysis, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReanalysis(d, label, names, only)
	if err != nil {
		d.Close()
		return nil, err
	}
	return r, nil
}

func newReanalysis(d *Dataset, label string, names ReanalysisNames, only []string) (*Reanalysis, error) {
	times, err := d.Times(names.Time)
	if err != nil {
		return nil, err
	}
	lats, err := d.Float64s(names.Lat)
	if err != nil {
		return nil, err
	}
	lons, err := d.Float64s(names.Lon)
	if err != nil {
		return nil, err
	}

	r := &Reanalysis{Dataset: d, label: label, times: times}
	for _, la := range lats {
		for _, lo := range lons {
			r.lat = append(r.lat, la)
			r.lon = append(r.lon, lo)
		}
	}

	tDim, latDim, lonDim := d.axis(names.Time), d.axis(names.Lat), d.axis(names.Lon)
	allow := make(map[string]bool, len(only))
	for _, v := range only {
		allow[v] = true
	}
	for _, v := range d.Variables() {
		if len(allow) > 0 && !allow[v] {
			continue
		}
		if d.hasDims(v, tDim, latDim, lonDim) {
			r.vars = append(r.vars, v)
		}
	}
	if len(r.vars) == 0 {
		return nil, fmt.Errorf("ncio: %s has no (time, lat, lon) variables", d.Path)
	}

	r.slabs, err = lru.New[slabKey, []float64](slabCacheSize)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reanalysis) Name() string {
	return r.label
}

func (r *Reanalysis) Times() []time.Time {
	return r.times
}

func (r *Reanalysis) Points() (lat, lon []float64) {
	return r.lat, r.lon
}

func (r *Reanalysis) Variables() []string {
	return r.vars
}

func (r *Reanalysis) LongName(v string) string {
	if ln := r.StringAttr(v, "long_name"); ln != "" {
		return ln
	}
	return v
}

// Value returns variable v at time index ti and flattened point pi.
func (r *Reanalysis) Value(v string, ti, pi int) (float64, error) {
	k := slabKey{variable: v, time: ti}
	slab, ok := r.slabs.Get(k)
	if !ok {
		var err error
		slab, err = r.Record(v, ti)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", obs.ErrExternalLookup, err)
		}
		r.slabs.Add(k, slab)
	}
	if pi < 0 || pi >= len(slab) {
		return 0, fmt.Errorf("%w: %s point %d outside %d", obs.ErrExternalLookup, v, pi, len(slab))
	}
	return slab[pi], nil
}
