package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/constants"
	"github.com/chrissnell/inform/internal/grid"
	"github.com/chrissnell/inform/internal/ingest"
	"github.com/chrissnell/inform/internal/join"
	"github.com/chrissnell/inform/internal/ncio"
	"github.com/chrissnell/inform/internal/obs"
	"github.com/chrissnell/inform/internal/regime"
	"github.com/chrissnell/inform/internal/sizedist"
	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/pkg/config"
)

// Inputs names the files for one run. Only Flight is required.
type Inputs struct {
	// Flight is an aircraft netCDF file, or a CSV export when it ends in
	// .csv.
	Flight string
	// Model is a model history file with the hybrid grid.
	Model string
	// Reference supplies the comparison times. Empty means the model times.
	Reference string
	// Echo lists radar echo classification files (netCDF or CSV).
	Echo []string
	// Reanalysis is a gridded single-level reanalysis.
	Reanalysis string
	// SizeDist is an aircraft file carrying probe size distributions.
	// Empty means none.
	SizeDist string
	// Sondes lists dropsonde .cls files, or directories searched for them.
	Sondes []string
	// Regimes lists segment files from earlier runs whose cloud regimes
	// are joined onto this flight.
	Regimes []string
	// Output is the product path. Empty skips writing.
	Output string
	// Segments is the path the extracted segments are written to. Empty
	// skips writing.
	Segments string
}

// Outcome is everything a run produced.
type Outcome struct {
	Result   *regime.Result
	Segments blocks.Collections
	Reports  []*join.Report
	// Product is nil when no model was given or gridding was skipped.
	Product *grid.Product
	// Run is nil when no store is configured.
	Run *storage.RunResults
}

// Pipeline runs the flight analysis end to end.
type Pipeline struct {
	cfg    *config.ConfigData
	roles  obs.Roles
	store  storage.Store
	logger *zap.SugaredLogger
}

// NewPipeline returns a pipeline. store may be nil; a nil logger discards
// output.
func NewPipeline(cfg *config.ConfigData, store storage.Store, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{cfg: cfg, roles: cfg.Roles(), store: store, logger: logger}
}

// Run reads the inputs, classifies and segments the flight, attaches the
// reference data, grids the flight onto the model and stores the result.
// Failures of optional inputs are logged and the run continues.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Outcome, error) {
	if in.Flight == "" {
		return nil, errors.New("no flight file given")
	}
	start := time.Now()

	tbl, err := p.readFlight(in.Flight)
	if err != nil {
		return nil, fmt.Errorf("read flight %s: %w", in.Flight, err)
	}
	p.logger.Infow("read flight", "file", in.Flight, "rows", tbl.Len(), "columns", len(tbl.Columns()))

	res, err := regime.NewClassifier(p.cfg.RegimeConfig(), p.roles, p.logger.Named("regime")).Classify(tbl)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", in.Flight, err)
	}
	for _, w := range res.Warnings {
		p.logger.Warnw("classification degraded", "error", w)
	}

	segs, err := blocks.Extract(res, p.roles, p.cfg.ExtractionConfig())
	if err != nil {
		return nil, fmt.Errorf("extract segments: %w", err)
	}
	for _, c := range blocks.Categories {
		p.logger.Infow("extracted segments", "category", c, "count", len(segs[c]))
	}

	out := &Outcome{Result: res, Segments: segs}
	if err := p.attach(ctx, in, out); err != nil {
		return nil, err
	}

	if in.Segments != "" {
		if err := p.writeSegments(in, out.Segments); err != nil {
			return nil, err
		}
	}

	if in.Model != "" {
		out.Product, err = p.grid(ctx, in, res.Table)
		switch {
		case errors.Is(err, grid.ErrNoCommonTimes), errors.Is(err, obs.ErrMissingEssentialField):
			p.logger.Warnw("skipping gridding", "model", in.Model, "error", err)
			out.Product = nil
		case err != nil:
			return nil, fmt.Errorf("grid %s: %w", in.Model, err)
		}
	}

	if out.Product != nil && in.Output != "" {
		if err := p.writeProduct(in, out.Product); err != nil {
			return nil, err
		}
	}

	if p.store != nil {
		out.Run = storage.NewRunResults(filepath.Base(in.Flight), filepath.Base(in.Model), p.roles, res, out.Segments, out.Product)
		if err := p.store.SaveRun(ctx, out.Run); err != nil {
			return nil, fmt.Errorf("store run: %w", err)
		}
	}

	p.logger.Infow("run complete", "file", in.Flight, "segments", out.Segments.Count(), "elapsed", time.Since(start))
	return out, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func (p *Pipeline) readFlight(path string) (*obs.Table, error) {
	if isCSV(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ingest.ReadObservations(f, p.cfg.Input.TimeVariable)
	}
	return ncio.ReadObservations(path, p.cfg.Input.TimeVariable, p.roles, p.cfg.Input.Variables, p.logger.Named("ncio"))
}

// attach runs the optional joins in a fixed order: size distributions,
// echo types, dropsondes, cloud regimes, reanalysis.
func (p *Pipeline) attach(ctx context.Context, in Inputs, out *Outcome) error {
	j := join.NewJoiner(p.cfg.JoinConfig(), p.roles, p.logger.Named("join"))

	series := []struct {
		name string
		path string
		tol  time.Duration
		read func() (*obs.Table, error)
	}{
		{"size distribution", in.SizeDist, p.cfg.Joins.SizeDistTolerance, func() (*obs.Table, error) { return p.readConcentrations(in.SizeDist) }},
		{"echo type", strings.Join(in.Echo, ","), p.cfg.Joins.EchoTolerance, func() (*obs.Table, error) { return p.readEcho(in.Echo) }},
		{"dropsonde", strings.Join(in.Sondes, ","), p.cfg.Joins.SondeTolerance, func() (*obs.Table, error) { return p.readSondes(in.Sondes) }},
		{"cloud regime", strings.Join(in.Regimes, ","), p.cfg.Joins.RegimeTolerance, func() (*obs.Table, error) { return p.readRegimes(in.Regimes) }},
	}
	for _, s := range series {
		if s.path == "" {
			continue
		}
		tbl, err := s.read()
		if err != nil {
			p.logger.Warnw("skipping "+s.name+" join", "file", s.path, "error", err)
			continue
		}
		if tbl == nil {
			p.logger.Warnw("no "+s.name+" data found", "file", s.path)
			continue
		}
		segs, reports, err := j.AttachSeries(ctx, out.Segments, &join.TableSeries{Label: s.name, Table: tbl}, s.tol)
		if err != nil {
			return fmt.Errorf("%s join: %w", s.name, err)
		}
		out.Segments = segs
		out.Reports = append(out.Reports, reports...)
	}
	p.logEchoTypes(out.Segments)

	if in.Reanalysis != "" {
		r, err := ncio.OpenReanalysis(in.Reanalysis, p.cfg.Joins.ReanalysisLabel, p.cfg.Input.Reanalysis, p.cfg.Joins.ReanalysisVariables)
		if err != nil {
			p.logger.Warnw("skipping reanalysis join", "file", in.Reanalysis, "error", err)
			return nil
		}
		defer r.Close()
		segs, reports, err := j.AttachField(ctx, out.Segments, r)
		if err != nil {
			return fmt.Errorf("reanalysis join: %w", err)
		}
		out.Segments = segs
		out.Reports = append(out.Reports, reports...)
	}
	return nil
}

// logEchoTypes reports the dominant radar echo type of each segment that
// carries one.
func (p *Pipeline) logEchoTypes(segs blocks.Collections) {
	for _, c := range blocks.Categories {
		for _, s := range segs[c] {
			v, ok := s.Table.Column(join.EchoTypeColumn)
			if !ok {
				continue
			}
			if code, ok := join.DominantEchoType(v); ok {
				p.logger.Debugw("segment echo type", "category", c, "block", s.BlockID,
					"code", code, "echo_type", join.EchoTypeName(code))
			}
		}
	}
}

func (p *Pipeline) readConcentrations(path string) (*obs.Table, error) {
	spectra, err := ncio.ReadSpectra(path, p.cfg.Input.TimeVariable, p.logger.Named("ncio"))
	if err != nil {
		return nil, err
	}
	return sizedist.Concentrations(spectra)
}

func (p *Pipeline) readEcho(paths []string) (*obs.Table, error) {
	if len(paths) == 1 && isCSV(paths[0]) {
		f, err := os.Open(paths[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ingest.ReadEchoTypes(f)
	}
	return ncio.ReadEchoTypes(paths)
}

// readSondes reads every sounding in the given files and directories.
func (p *Pipeline) readSondes(paths []string) (*obs.Table, error) {
	var files []string
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := ingest.FindSoundings(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	var all []ingest.Sounding
	for _, f := range files {
		ss, err := ingest.ReadSoundingFile(f, p.logger.Named("ingest"))
		if err != nil {
			p.logger.Warnw("skipping sounding file", "file", f, "error", err)
			continue
		}
		all = append(all, ss...)
	}
	p.logger.Infow("read soundings", "files", len(files), "soundings", len(all))
	return ingest.SoundingsTable(all)
}

func (p *Pipeline) readRegimes(paths []string) (*obs.Table, error) {
	bs, err := ncio.ReadCloudRegimes(paths)
	if err != nil {
		return nil, err
	}
	return ncio.RegimeTable(bs)
}

func (p *Pipeline) writeSegments(in Inputs, segs blocks.Collections) error {
	if segs.Count() == 0 {
		p.logger.Warnw("no segments; segment file not written", "file", in.Segments)
		return nil
	}
	attrs := map[string]string{
		"source_flight": filepath.Base(in.Flight),
		"software":      "inform " + constants.Version,
	}
	if err := ncio.WriteSegments(in.Segments, segs, attrs); err != nil {
		return fmt.Errorf("write segments %s: %w", in.Segments, err)
	}
	p.logger.Infow("wrote segments", "file", in.Segments, "segments", segs.Count())
	return nil
}

// grid averages the flight onto the model record closest to the middle of
// the flight.
func (p *Pipeline) grid(ctx context.Context, in Inputs, tbl *obs.Table) (*grid.Product, error) {
	mf, err := ncio.OpenModel(in.Model, p.cfg.Input.Model)
	if err != nil {
		return nil, err
	}
	defer mf.Close()
	if len(mf.Times()) == 0 {
		return nil, fmt.Errorf("%w: %s has no output times", grid.ErrInvalidModel, in.Model)
	}

	mid := tbl.Start().Add(tbl.End().Sub(tbl.Start()) / 2)
	ti := nearestTime(mf.Times(), mid)
	m, err := mf.Grid(ti)
	if err != nil {
		return nil, err
	}

	ref := mf.Times()
	if in.Reference != "" {
		if ref, err = p.referenceTimes(in.Reference); err != nil {
			return nil, err
		}
	}

	b := grid.NewBuilder(p.cfg.GridConfig(), p.roles, p.logger.Named("grid"))
	prod, err := b.Build(ctx, m, ref, tbl)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("gridded flight", "model", in.Model, "model_time", mf.Times()[ti],
		"windows", prod.Windows, "cells", len(prod.Cells), "dropped", prod.Dropped)
	return prod, nil
}

func (p *Pipeline) referenceTimes(path string) ([]time.Time, error) {
	d, err := ncio.Open(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.Times(p.cfg.Input.Model.Time)
}

// nearestTime returns the index of the time closest to t. times must be
// non-empty and ascending.
func nearestTime(times []time.Time, t time.Time) int {
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(t) })
	switch {
	case i == 0:
		return 0
	case i == len(times):
		return len(times) - 1
	case times[i].Sub(t) < t.Sub(times[i-1]):
		return i
	}
	return i - 1
}

func (p *Pipeline) writeProduct(in Inputs, prod *grid.Product) error {
	cells := prod.Populated()
	if cells.Len() == 0 {
		p.logger.Warnw("no populated cells; product not written", "file", in.Output)
		return nil
	}
	attrs := map[string]string{
		"source_flight": filepath.Base(in.Flight),
		"source_model":  filepath.Base(in.Model),
		"software":      "inform " + constants.Version,
	}
	if err := ncio.WriteProduct(in.Output, cells, attrs); err != nil {
		return fmt.Errorf("write product %s: %w", in.Output, err)
	}
	p.logger.Infow("wrote product", "file", in.Output, "cells", cells.Len())
	return nil
}
