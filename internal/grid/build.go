// Package grid bins aircraft samples onto the pressure/latitude/longitude
// grid of a hybrid-coordinate atmospheric model.
package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/inform/internal/obs"
)

// ErrNoCommonTimes means no reference time matched an aircraft timestamp.
var ErrNoCommonTimes = errors.New("no reference times match the aircraft series")

// Config controls gridding.
type Config struct {
	// PressureScale converts model pressure to the units of the aircraft
	// pressure column (0.01 for Pa to hPa).
	PressureScale float64
	// WindowPadding extends the first and last comparison windows.
	WindowPadding time.Duration
	// ReferenceVariable decides which cells are populated: those where its
	// mean is non-zero. Empty means the temperature role column.
	ReferenceVariable string
	// Variables are the columns to average. Empty means every column.
	Variables []string
}

// DefaultConfig returns the standard gridding setup.
func DefaultConfig() Config {
	return Config{
		PressureScale: 0.01,
		WindowPadding: 30 * time.Minute,
	}
}

// Builder grids observation tables.
type Builder struct {
	cfg    Config
	roles  obs.Roles
	logger *zap.SugaredLogger
}

// NewBuilder returns a builder reading positions through roles.
func NewBuilder(cfg Config, roles obs.Roles, logger *zap.SugaredLogger) *Builder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.PressureScale == 0 {
		cfg.PressureScale = 1
	}
	return &Builder{cfg: cfg, roles: roles, logger: logger}
}

// Window returns the model index ranges enclosing the samples of tbl: the
// nearest latitude and longitude to the sample extremes padded by one cell,
// and, over every column in that window, the nearest levels to the lowest
// and highest sample pressure padded by one level.
func (b *Builder) Window(m *Model, tbl *obs.Table) (Bounds, error) {
	latLo, latHi, ok := tbl.Range(b.roles.Column(obs.RoleLatitude))
	if !ok {
		return Bounds{}, &obs.FieldError{Role: obs.RoleLatitude, Column: b.roles.Column(obs.RoleLatitude), Err: obs.ErrMissingEssentialField}
	}
	lonLo, lonHi, ok := b.lonRange(m, tbl)
	if !ok {
		return Bounds{}, &obs.FieldError{Role: obs.RoleLongitude, Column: b.roles.Column(obs.RoleLongitude), Err: obs.ErrMissingEssentialField}
	}
	pLo, pHi, ok := tbl.Range(b.roles.Column(obs.RolePressure))
	if !ok {
		return Bounds{}, &obs.FieldError{Role: obs.RolePressure, Column: b.roles.Column(obs.RolePressure), Err: obs.ErrMissingEssentialField}
	}

	var bd Bounds
	bd.Lat = [2]int{
		clamp(nearest(m.Lat, latLo)-1, 0, len(m.Lat)-1),
		clamp(nearest(m.Lat, latHi)+1, 0, len(m.Lat)-1),
	}
	bd.Lon = [2]int{
		clamp(nearest(m.Lon, lonLo)-1, 0, len(m.Lon)-1),
		clamp(nearest(m.Lon, lonHi)+1, 0, len(m.Lon)-1),
	}

	lo, hi := m.Levels()-1, 0
	for j := bd.Lat[0]; j <= bd.Lat[1]; j++ {
		for i := bd.Lon[0]; i <= bd.Lon[1]; i++ {
			prof := m.Profile(j, i, b.cfg.PressureScale)
			if k := nearest(prof, pLo); k < lo {
				lo = k
			}
			if k := nearest(prof, pHi); k > hi {
				hi = k
			}
		}
	}
	bd.Alt = [2]int{clamp(lo-1, 0, m.Levels()-1), clamp(hi+1, 0, m.Levels()-1)}
	return bd, nil
}

// Build averages the samples of tbl into model grid cells, one comparison
// window at a time. The windows are (t[i], t[i+1]] over the reference times
// shared with the aircraft series, padded at both ends.
//
// Within a window, samples in the same cell are averaged. Across windows a
// cell is overwritten, not accumulated: the last window that touches a cell
// decides its values and mid-time.
func (b *Builder) Build(ctx context.Context, m *Model, refTimes []time.Time, tbl *obs.Table) (*Product, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := tbl.Require(b.roles, obs.RoleLatitude, obs.RoleLongitude, obs.RolePressure); err != nil {
		return nil, err
	}

	ref := b.cfg.ReferenceVariable
	if ref == "" {
		ref = b.roles.Column(obs.RoleTemperature)
	}
	if !tbl.Has(ref) {
		return nil, &obs.FieldError{Role: obs.RoleTemperature, Column: ref, Err: obs.ErrMissingEssentialField}
	}
	vars, err := b.variables(tbl, ref)
	if err != nil {
		return nil, err
	}

	bd, err := b.Window(m, tbl)
	if err != nil {
		return nil, err
	}

	sortedRef := append([]time.Time(nil), refTimes...)
	sort.Slice(sortedRef, func(i, j int) bool { return sortedRef[i].Before(sortedRef[j]) })
	edges, err := ComparisonTimes(sortedRef, tbl.Times(), b.cfg.WindowPadding)
	if err != nil {
		return nil, err
	}

	nAlt, nLat, nLon := bd.Shape()
	p := &Product{
		Bounds:    bd,
		Variables: vars,
		LongNames: make(map[string]string, len(vars)),
		Fields:    make(map[string]Array3, len(vars)),
		MeanLat:   NewArray3(nAlt, nLat, nLon),
		MeanLon:   NewArray3(nAlt, nLat, nLon),
		MeanAlt:   NewArray3(nAlt, nLat, nLon),
	}
	for _, v := range vars {
		p.Fields[v] = NewArray3(nAlt, nLat, nLon)
		p.LongNames[v] = tbl.LongName(v)
	}
	midTime := make([]time.Time, nAlt*nLat*nLon)

	g := &gridder{b: b, m: m, tbl: tbl, bd: bd}
	g.prepare()

	times := tbl.Times()
	for w := 0; w+1 < len(edges); w++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Rows with edges[w] < t <= edges[w+1].
		first := sort.Search(len(times), func(i int) bool { return times[i].After(edges[w]) })
		last := sort.Search(len(times), func(i int) bool { return times[i].After(edges[w+1]) })
		if first >= last {
			continue
		}
		p.Windows++

		cells, dropped := g.bin(first, last)
		p.Dropped += dropped

		for _, key := range sortedKeys(cells) {
			rows := cells[key]
			k, j, i := key[0], key[1], key[2]
			for _, v := range vars {
				col, _ := tbl.Column(v)
				p.Fields[v].Set(k, j, i, nanMean(col, rows))
			}
			p.MeanLat.Set(k, j, i, nanMean(g.lat, rows))
			p.MeanLon.Set(k, j, i, nanMean(g.lon, rows))
			p.MeanAlt.Set(k, j, i, nanMean(g.pres, rows))

			lo, hi := times[rows[0]], times[rows[0]]
			for _, r := range rows[1:] {
				if times[r].Before(lo) {
					lo = times[r]
				}
				if times[r].After(hi) {
					hi = times[r]
				}
			}
			midTime[p.MeanLat.index(k, j, i)] = lo.Add(hi.Sub(lo) / 2)
		}
	}

	refField := p.Fields[ref]
	for k := 0; k < nAlt; k++ {
		for j := 0; j < nLat; j++ {
			for i := 0; i < nLon; i++ {
				// A cell whose reference mean is exactly zero is
				// indistinguishable from an unwritten one and is dropped.
				if refField.At(k, j, i) == 0 {
					continue
				}
				c := Cell{
					Alt:       k,
					Lat:       j,
					Lon:       i,
					Time:      midTime[refField.index(k, j, i)],
					Latitude:  p.MeanLat.At(k, j, i),
					Longitude: p.MeanLon.At(k, j, i),
					Altitude:  p.MeanAlt.At(k, j, i),
					Values:    make(map[string]float64, len(vars)),
				}
				for _, v := range vars {
					c.Values[v] = p.Fields[v].At(k, j, i)
				}
				p.Cells = append(p.Cells, c)
			}
		}
	}
	sort.SliceStable(p.Cells, func(a, c int) bool {
		return p.Cells[a].Time.Before(p.Cells[c].Time)
	})

	b.logger.Debugw("gridded flight",
		"bounds", fmt.Sprintf("%+v", bd),
		"windows", p.Windows,
		"cells", len(p.Cells),
		"dropped", p.Dropped,
	)
	return p, nil
}

func (b *Builder) variables(tbl *obs.Table, ref string) ([]string, error) {
	vars := b.cfg.Variables
	if len(vars) == 0 {
		vars = tbl.Columns()
	}
	out := make([]string, 0, len(vars)+1)
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v] {
			continue
		}
		if !tbl.Has(v) {
			return nil, fmt.Errorf("grid variable %q: %w", v, obs.ErrMissingEssentialField)
		}
		seen[v] = true
		out = append(out, v)
	}
	if !seen[ref] {
		out = append(out, ref)
	}
	return out, nil
}

// lonRange returns the sample longitude range in the convention of the
// model axis.
func (b *Builder) lonRange(m *Model, tbl *obs.Table) (float64, float64, bool) {
	col, ok := tbl.Column(b.roles.Column(obs.RoleLongitude))
	if !ok {
		return 0, 0, false
	}
	return obs.FiniteRange(normalizeLon(m, col))
}

func normalizeLon(m *Model, lon []float64) []float64 {
	if !m.Wraps() {
		return lon
	}
	out := make([]float64, len(lon))
	for i, v := range lon {
		if v < 0 {
			v += 360
		}
		out[i] = v
	}
	return out
}

type cellKey [3]int

// gridder holds the per-build lookup state.
type gridder struct {
	b   *Builder
	m   *Model
	tbl *obs.Table
	bd  Bounds

	lat, lon, pres []float64
	lats, lons     []float64
	profiles       [][]float64
}

func (g *gridder) prepare() {
	g.lat, _ = g.tbl.Column(g.b.roles.Column(obs.RoleLatitude))
	lon, _ := g.tbl.Column(g.b.roles.Column(obs.RoleLongitude))
	g.lon = normalizeLon(g.m, lon)
	g.pres, _ = g.tbl.Column(g.b.roles.Column(obs.RolePressure))

	g.lats = g.m.Lat[g.bd.Lat[0] : g.bd.Lat[1]+1]
	g.lons = g.m.Lon[g.bd.Lon[0] : g.bd.Lon[1]+1]

	// One full-column profile per window cell, indexed [lat*nLon + lon].
	g.profiles = make([][]float64, len(g.lats)*len(g.lons))
	for j := range g.lats {
		for i := range g.lons {
			g.profiles[j*len(g.lons)+i] = g.m.Profile(g.bd.Lat[0]+j, g.bd.Lon[0]+i, g.b.cfg.PressureScale)
		}
	}
}

// bin assigns rows [first, last) to window cells. Rows outside the
// horizontal window, or whose pressure falls outside the vertical window of
// their column, are dropped and counted.
func (g *gridder) bin(first, last int) (map[cellKey][]int, int) {
	cells := make(map[cellKey][]int)
	dropped := 0
	nLev := g.m.Levels()
	for r := first; r < last; r++ {
		j := bin(g.lats, g.lat[r])
		i := bin(g.lons, g.lon[r])
		if j < 0 || j >= len(g.lats)-1 || i < 0 || i >= len(g.lons)-1 {
			dropped++
			continue
		}
		lev := bin(g.profiles[j*len(g.lons)+i], g.pres[r])
		if lev < 0 || lev >= nLev-1 {
			dropped++
			continue
		}
		k := lev - g.bd.Alt[0]
		if k < 0 || k > g.bd.Alt[1]-g.bd.Alt[0] {
			dropped++
			continue
		}
		key := cellKey{k, j, i}
		cells[key] = append(cells[key], r)
	}
	return cells, dropped
}

func sortedKeys(cells map[cellKey][]int) []cellKey {
	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		for d := 0; d < 3; d++ {
			if keys[a][d] != keys[b][d] {
				return keys[a][d] < keys[b][d]
			}
		}
		return false
	})
	return keys
}

// nanMean averages the finite values of col at rows; NaN when none are.
func nanMean(col []float64, rows []int) float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := col[r]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}
