package ncio

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/inform/internal/join"
	"github.com/chrissnell/inform/internal/obs"
	"github.com/chrissnell/inform/internal/sizedist"
)

// DefaultTimeVariable is the time coordinate of aircraft files.
const DefaultTimeVariable = "Time"

// ReadObservations loads the role columns plus vars from an aircraft file
// into a table. High-rate variables are averaged to one value per record.
// Absent variables are skipped; role checks happen downstream.
func ReadObservations(path, timeVar string, roles obs.Roles, vars []string, logger *zap.SugaredLogger) (*obs.Table, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeVar == "" {
		timeVar = DefaultTimeVariable
	}
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if !d.Has(timeVar) {
		return nil, &obs.FieldError{Role: "time", Column: timeVar, Err: obs.ErrMissingEssentialField}
	}
	times, err := d.Times(timeVar)
	if err != nil {
		return nil, err
	}

	want := make([]string, 0, len(roles)+len(vars))
	seen := map[string]bool{timeVar: true}
	for _, r := range obs.AllRoles {
		if c := roles.Column(r); c != "" && !seen[c] {
			seen[c] = true
			want = append(want, c)
		}
	}
	for _, v := range vars {
		if !seen[v] {
			seen[v] = true
			want = append(want, v)
		}
	}

	var names []string
	var cols [][]float64
	longNames := make(map[string]string)
	for _, v := range want {
		if !d.Has(v) {
			logger.Warnw("variable not in flight file", "file", path, "variable", v)
			continue
		}
		col, err := d.perRecord(v, len(times))
		if err != nil {
			logger.Warnw("skipping variable", "file", path, "variable", v, "error", err)
			continue
		}
		names = append(names, v)
		cols = append(cols, col)
		if ln := d.StringAttr(v, "long_name"); ln != "" {
			longNames[v] = ln
		}
	}

	tbl, err := obs.NewTable(times, names, cols)
	if err != nil {
		return nil, err
	}
	logger.Infow("read flight", "file", path, "rows", tbl.Len(), "variables", len(names))
	return tbl.WithLongNames(longNames), nil
}

// perRecord reads v as one value per record, averaging a trailing
// samples-per-second dimension.
func (d *Dataset) perRecord(v string, n int) ([]float64, error) {
	dims := d.Dimensions(v)
	lengths := d.Lengths(v)
	switch {
	case len(dims) == 1 && lengths[0] == n:
		return d.Float64s(v)
	case len(dims) == 2 && lengths[0] == n && strings.HasPrefix(strings.ToLower(dims[1]), "sps"):
		flat, err := d.Float64s(v)
		if err != nil {
			return nil, err
		}
		return rowMeans(flat, n, lengths[1]), nil
	}
	return nil, fmt.Errorf("unsupported shape %v %v", dims, lengths)
}

func rowMeans(flat []float64, rows, width int) []float64 {
	out := make([]float64, rows)
	buf := make([]float64, 0, width)
	for r := range out {
		buf = buf[:0]
		for _, x := range flat[r*width : (r+1)*width] {
			if !math.IsNaN(x) {
				buf = append(buf, x)
			}
		}
		if len(buf) == 0 {
			out[r] = math.NaN()
			continue
		}
		out[r] = stat.Mean(buf, nil)
	}
	return out
}

// Radar file variables.
const (
	EchoTimeVariable = "time"
	EchoTypeVariable = "HCR_ECHO_TYPE_1D"
)

// ReadEchoTypes concatenates the radar echo classification from one or
// more files into a table with a single Echo_Type column.
func ReadEchoTypes(paths []string) (*obs.Table, error) {
	var times []time.Time
	var vals []float64
	for _, p := range paths {
		d, err := Open(p)
		if err != nil {
			return nil, err
		}
		t, err := d.Times(EchoTimeVariable)
		if err != nil {
			d.Close()
			return nil, err
		}
		v, err := d.Float64s(EchoTypeVariable)
		d.Close()
		if err != nil {
			return nil, err
		}
		if len(v) != len(t) {
			return nil, fmt.Errorf("ncio: %s has %d echo types for %d times", p, len(v), len(t))
		}
		times = append(times, t...)
		vals = append(vals, v...)
	}
	tbl, err := obs.NewTable(times, []string{join.EchoTypeColumn}, [][]float64{vals})
	if err != nil {
		return nil, err
	}
	return tbl.WithLongNames(map[string]string{join.EchoTypeColumn: "HCR echo type classification"}), nil
}

// ReadSpectra reads the size distributions of every supported probe found
// in an aircraft file. Probes that cannot be read are reported and left
// out.
func ReadSpectra(path, timeVar string, logger *zap.SugaredLogger) (map[string]*sizedist.Spectrum, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeVar == "" {
		timeVar = DefaultTimeVariable
	}
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	times, err := d.Times(timeVar)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*sizedist.Spectrum)
	for probe, v := range sizedist.Select(sizedist.Candidates(d.Variables())) {
		s, err := d.spectrum(v, times)
		if err != nil {
			logger.Warnw("skipping size distribution", "file", path, "probe", probe, "variable", v, "error", err)
			continue
		}
		out[probe] = s
	}
	return out, nil
}

func (d *Dataset) spectrum(v string, times []time.Time) (*sizedist.Spectrum, error) {
	dims := d.Dimensions(v)
	lengths := d.Lengths(v)
	if len(dims) < 2 || lengths[0] != len(times) {
		return nil, fmt.Errorf("unsupported shape %v %v", dims, lengths)
	}
	nbins := lengths[len(lengths)-1]
	if b := strings.ToLower(dims[len(dims)-1]); !strings.HasPrefix(b, "vector") && !strings.HasPrefix(b, "bin") && !strings.HasPrefix(b, "cell") {
		return nil, fmt.Errorf("no bin dimension in %v", dims)
	}
	samples := 1
	for i := 1; i < len(dims)-1; i++ {
		if !strings.HasPrefix(strings.ToLower(dims[i]), "sps") {
			return nil, fmt.Errorf("unexpected dimension %q", dims[i])
		}
		samples *= lengths[i]
	}

	flat, err := d.Float64s(v)
	if err != nil {
		return nil, err
	}
	raw := make([][][]float64, len(times))
	for r := range raw {
		raw[r] = make([][]float64, samples)
		for s := range raw[r] {
			off := (r*samples + s) * nbins
			raw[r][s] = flat[off : off+nbins]
		}
	}

	first, last := 0, -1
	if a := d.NumberAttr(v, "FirstBin"); len(a) > 0 {
		first = int(a[0])
	}
	if a := d.NumberAttr(v, "LastBin"); len(a) > 0 {
		last = int(a[0])
	}
	return sizedist.NewSpectrum(v, times, sizedist.Collapse(raw), d.NumberAttr(v, "CellSizes"), first, last)
}
