// Package join attaches external reference fields onto extracted flight
// segments by nearest time and nearest grid point.
package join

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/obs"
)

// Config controls reference lookups.
type Config struct {
	// FieldTolerance is the largest time offset accepted for a gridded
	// reference sample.
	FieldTolerance time.Duration
	// MaxDistanceKm rejects grid points farther than this from the
	// aircraft. Zero disables the check.
	MaxDistanceKm float64
	// MemoSize bounds the lookup cache per field source.
	MemoSize int
}

// DefaultConfig suits an hourly quarter-degree reanalysis.
func DefaultConfig() Config {
	return Config{
		FieldTolerance: 30 * time.Minute,
		MaxDistanceKm:  50,
		MemoSize:       DefaultMemoSize,
	}
}

// Report counts the outcome of joining one variable across all segments.
type Report struct {
	Source   string
	Variable string
	Column   string
	Rows     int
	Matched  int
	Missing  int
	Failed   int
	// FirstError is the first lookup failure, if any.
	FirstError error
}

// Joiner attaches reference data onto segment collections. It never
// modifies its inputs.
type Joiner struct {
	cfg    Config
	roles  obs.Roles
	logger *zap.SugaredLogger
}

// NewJoiner returns a Joiner. A nil logger discards output.
func NewJoiner(cfg Config, roles obs.Roles, logger *zap.SugaredLogger) *Joiner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Joiner{cfg: cfg, roles: roles, logger: logger}
}

// AttachSeries joins every variable of src onto each segment row by
// nearest timestamp within tol. Rows without a match keep NaN. Columns
// keep the source variable names.
func (j *Joiner) AttachSeries(ctx context.Context, in blocks.Collections, src SeriesSource, tol time.Duration) (blocks.Collections, []*Report, error) {
	idx := NewTimeIndex(src.Times())
	vars := src.Variables()
	reports := newReports(src.Name(), vars, func(v string) string { return v })

	out, err := mapSegments(ctx, in, func(tbl *obs.Table) (*obs.Table, error) {
		match := make([]int, tbl.Len())
		for row := range match {
			k, ok := idx.Nearest(tbl.Time(row), tol)
			if !ok {
				k = -1
			}
			match[row] = k
		}

		for _, v := range vars {
			r := reports[v]
			col := make([]float64, tbl.Len())
			for row, k := range match {
				r.Rows++
				if k < 0 {
					col[row] = math.NaN()
					r.Missing++
					continue
				}
				val, err := src.Value(v, k)
				if err != nil {
					col[row] = math.NaN()
					r.fail(err)
					continue
				}
				col[row] = val
				r.Matched++
			}
			next, err := tbl.WithColumn(r.Column, col, src.LongName(v))
			if err != nil {
				return nil, err
			}
			tbl = next
		}
		return tbl, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, j.finish(reports, vars), nil
}

// AttachField joins every variable of a gridded source onto each segment
// row by nearest reference time and nearest grid point. Columns are named
// "<source>_<variable>". Lookups go through a bounded memo shared across
// segments; a failing lookup leaves NaN in that row only.
func (j *Joiner) AttachField(ctx context.Context, in blocks.Collections, src FieldSource) (blocks.Collections, []*Report, error) {
	tIdx := NewTimeIndex(src.Times())
	sIdx := NewSpatialIndex(src.Points())
	memo, err := NewMemo(j.cfg.MemoSize)
	if err != nil {
		return nil, nil, err
	}
	vars := src.Variables()
	reports := newReports(src.Name(), vars, func(v string) string {
		return fmt.Sprintf("%s_%s", src.Name(), v)
	})

	latName, lonName := j.roles.Column(obs.RoleLatitude), j.roles.Column(obs.RoleLongitude)

	out, err := mapSegments(ctx, in, func(tbl *obs.Table) (*obs.Table, error) {
		if err := tbl.Require(j.roles, obs.RoleLatitude, obs.RoleLongitude); err != nil {
			return nil, err
		}
		lat, _ := tbl.Column(latName)
		lon, _ := tbl.Column(lonName)

		type key struct{ t, p int }
		keys := make([]key, tbl.Len())
		for row := range keys {
			keys[row] = key{-1, -1}
			ti, ok := tIdx.Nearest(tbl.Time(row), j.cfg.FieldTolerance)
			if !ok {
				continue
			}
			pi, km, ok := sIdx.Nearest(lat[row], lon[row])
			if !ok || (j.cfg.MaxDistanceKm > 0 && km > j.cfg.MaxDistanceKm) {
				continue
			}
			keys[row] = key{ti, pi}
		}

		for _, v := range vars {
			r := reports[v]
			col := make([]float64, tbl.Len())
			for row, k := range keys {
				r.Rows++
				if k.t < 0 {
					col[row] = math.NaN()
					r.Missing++
					continue
				}
				val, err := memo.Get(v, k.t, k.p, func() (float64, error) {
					return src.Value(v, k.t, k.p)
				})
				if err != nil {
					col[row] = math.NaN()
					r.fail(err)
					continue
				}
				col[row] = val
				r.Matched++
			}
			next, err := tbl.WithColumn(r.Column, col, src.LongName(v))
			if err != nil {
				return nil, err
			}
			tbl = next
		}
		return tbl, nil
	})
	if err != nil {
		return nil, nil, err
	}

	hits, misses := memo.Stats()
	j.logger.Debugw("reference lookups", "source", src.Name(), "hits", hits, "misses", misses)
	return out, j.finish(reports, vars), nil
}

// mapSegments applies fn to a copy of every segment table.
func mapSegments(ctx context.Context, in blocks.Collections, fn func(*obs.Table) (*obs.Table, error)) (blocks.Collections, error) {
	cats := make([]blocks.Category, 0, len(in))
	for c := range in {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(a, b int) bool { return cats[a] < cats[b] })

	out := make(blocks.Collections, len(in))
	for _, c := range cats {
		segs := in[c]
		next := make([]blocks.Segment, len(segs))
		for i, seg := range segs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tbl, err := fn(seg.Table)
			if err != nil {
				return nil, fmt.Errorf("%s block %d: %w", c, seg.BlockID, err)
			}
			seg.Rows = append([]int(nil), seg.Rows...)
			seg.Table = tbl
			next[i] = seg
		}
		out[c] = next
	}
	return out, nil
}

func newReports(source string, vars []string, column func(string) string) map[string]*Report {
	out := make(map[string]*Report, len(vars))
	for _, v := range vars {
		out[v] = &Report{Source: source, Variable: v, Column: column(v)}
	}
	return out
}

func (r *Report) fail(err error) {
	r.Failed++
	if r.FirstError == nil {
		r.FirstError = err
	}
}

func (j *Joiner) finish(reports map[string]*Report, vars []string) []*Report {
	out := make([]*Report, 0, len(vars))
	for _, v := range vars {
		r := reports[v]
		out = append(out, r)
		if r.Failed > 0 {
			j.logger.Warnw("reference lookups failed",
				"source", r.Source, "variable", r.Variable, "failed", r.Failed, "rows", r.Rows, "error", r.FirstError)
			continue
		}
		j.logger.Debugw("joined variable",
			"source", r.Source, "variable", r.Variable, "matched", r.Matched, "missing", r.Missing)
	}
	return out
}
