// Package sizedist derives number concentrations in fixed size ranges from
// particle-probe size distributions.
package sizedist

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/inform/internal/obs"
)

// Range is a derived concentration summed over the bins whose upper edge
// falls in [Lower, Upper]. Infinite bounds are open.
type Range struct {
	Column string
	Lower  float64
	Upper  float64
}

// Product describes the concentrations derived from one probe.
type Product struct {
	Probe  string
	Match  func(variable string) bool
	Ranges []Range
}

// Products lists the supported probes in output order.
var Products = []Product{
	{
		Probe: "2DC",
		Match: func(v string) bool { return strings.HasPrefix(v, "C2DC") },
		Ranges: []Range{
			{Column: "Ndriz_2DC", Lower: 100, Upper: 500},
			{Column: "Nprecip_2DC", Lower: 1000, Upper: math.Inf(1)},
		},
	},
	{
		Probe: "2DS",
		Match: func(v string) bool { return strings.HasPrefix(v, "C2DS") && strings.HasSuffix(v, "2H") },
		Ranges: []Range{
			{Column: "Ndriz_2DS", Lower: 100, Upper: 500},
			{Column: "Nprecip_2DS", Lower: 1000, Upper: math.Inf(1)},
		},
	},
	{
		Probe: "UHSAS",
		Match: func(v string) bool { return strings.HasPrefix(v, "CUH") },
		Ranges: []Range{
			{Column: "Naitk_UH", Lower: 70, Upper: 100},
			{Column: "Naccum_UH", Lower: 100, Upper: math.Inf(1)},
		},
	},
}

var candidatePrefixes = []struct {
	prefix, exclude string
}{
	{"CCDP", ""},
	{"C2DCA", ""},
	{"C2DSA", ""},
	{"CUHSAS", "CVI"},
	{"CS200", ""},
}

// Candidates picks the size-distribution variables out of a file's
// variable list, grouped by probe prefix and deduplicated.
func Candidates(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range candidatePrefixes {
		for _, n := range names {
			if !strings.HasPrefix(n, p.prefix) || (p.exclude != "" && strings.Contains(n, p.exclude)) {
				continue
			}
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Select returns, per product, the first candidate variable it matches.
// Products with no match are absent.
func Select(candidates []string) map[string]string {
	out := make(map[string]string)
	for _, p := range Products {
		for _, c := range candidates {
			if p.Match(c) {
				out[p.Probe] = c
				break
			}
		}
	}
	return out
}

// Spectrum is one probe's per-second counts over its used bins.
type Spectrum struct {
	Variable string
	Times    []time.Time
	// Counts is indexed [row][bin].
	Counts [][]float64
	// Edges holds the upper size edge of each used bin, in micrometres.
	Edges []float64
}

// NewSpectrum restricts full-width counts to bins firstBin..lastBin and
// pairs them with the matching cell sizes. A negative lastBin means the
// last bin.
func NewSpectrum(variable string, times []time.Time, counts [][]float64, cellSizes []float64, firstBin, lastBin int) (*Spectrum, error) {
	if len(cellSizes) == 0 {
		return nil, &obs.FieldError{
			Role:   obs.Role("size distribution"),
			Column: variable,
			Err:    fmt.Errorf("%w: no CellSizes attribute", obs.ErrMissingOptionalField),
		}
	}
	if len(counts) != len(times) {
		return nil, fmt.Errorf("sizedist: %s has %d rows for %d times", variable, len(counts), len(times))
	}
	nbins := 0
	if len(counts) > 0 {
		nbins = len(counts[0])
	}
	if lastBin < 0 || lastBin >= nbins {
		lastBin = nbins - 1
	}
	if firstBin < 0 {
		firstBin = 0
	}
	if firstBin > lastBin {
		return nil, fmt.Errorf("sizedist: %s has no used bins (%d..%d)", variable, firstBin, lastBin)
	}
	if lastBin >= len(cellSizes) {
		return nil, fmt.Errorf("sizedist: %s uses bin %d but has %d cell sizes", variable, lastBin, len(cellSizes))
	}

	s := &Spectrum{
		Variable: variable,
		Times:    times,
		Counts:   make([][]float64, len(counts)),
		Edges:    append([]float64(nil), cellSizes[firstBin:lastBin+1]...),
	}
	for i, row := range counts {
		if len(row) != nbins {
			return nil, fmt.Errorf("sizedist: %s row %d has %d bins, want %d", variable, i, len(row), nbins)
		}
		s.Counts[i] = row[firstBin : lastBin+1]
	}
	return s, nil
}

// Collapse averages sub-second samples, indexed [row][sample][bin], down
// to one spectrum per row. NaN samples are skipped.
func Collapse(samples [][][]float64) [][]float64 {
	out := make([][]float64, len(samples))
	var buf []float64
	for i, row := range samples {
		if len(row) == 0 {
			continue
		}
		nbins := len(row[0])
		out[i] = make([]float64, nbins)
		for b := 0; b < nbins; b++ {
			buf = buf[:0]
			for _, s := range row {
				if !math.IsNaN(s[b]) {
					buf = append(buf, s[b])
				}
			}
			if len(buf) == 0 {
				out[i][b] = math.NaN()
				continue
			}
			out[i][b] = stat.Mean(buf, nil)
		}
	}
	return out
}

// BinRange returns the inclusive used-bin span selected by an upper-edge
// range. ok is false when the selection is empty.
func (s *Spectrum) BinRange(lower, upper float64) (i0, i1 int, ok bool) {
	n := len(s.Edges)
	if n == 0 {
		return 0, 0, false
	}
	i0 = sort.SearchFloat64s(s.Edges, lower)
	i1 = sort.Search(n, func(i int) bool { return s.Edges[i] > upper }) - 1
	i0 = clip(i0, 0, n-1)
	i1 = clip(i1, 0, n-1)
	return i0, i1, i1 >= i0
}

// Sum totals each row's counts over an upper-edge range, skipping NaN.
// An empty selection yields NaN for every row.
func (s *Spectrum) Sum(lower, upper float64) []float64 {
	out := make([]float64, len(s.Counts))
	i0, i1, ok := s.BinRange(lower, upper)
	for r, row := range s.Counts {
		if !ok {
			out[r] = math.NaN()
			continue
		}
		var sum float64
		for _, v := range row[i0 : i1+1] {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		out[r] = sum
	}
	return out
}

func clip(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// Concentrations computes every range of the given per-probe spectra and
// aligns them on the union of their timestamps. Rows a probe does not
// cover are NaN. The result is nil when spectra is empty.
func Concentrations(spectra map[string]*Spectrum) (*obs.Table, error) {
	var times []time.Time
	seen := make(map[int64]bool)
	for _, s := range spectra {
		for _, t := range s.Times {
			if k := t.UnixNano(); !seen[k] {
				seen[k] = true
				times = append(times, t)
			}
		}
	}
	if len(times) == 0 {
		return nil, nil
	}
	sort.Slice(times, func(a, b int) bool { return times[a].Before(times[b]) })
	row := make(map[int64]int, len(times))
	for i, t := range times {
		row[t.UnixNano()] = i
	}

	var names []string
	var cols [][]float64
	longNames := make(map[string]string)
	for _, p := range Products {
		s, ok := spectra[p.Probe]
		if !ok {
			continue
		}
		for _, rg := range p.Ranges {
			col := make([]float64, len(times))
			floats.AddConst(math.NaN(), col)
			for i, v := range s.Sum(rg.Lower, rg.Upper) {
				col[row[s.Times[i].UnixNano()]] = v
			}
			names = append(names, rg.Column)
			cols = append(cols, col)
			longNames[rg.Column] = rangeLongName(p.Probe, rg)
		}
	}

	tbl, err := obs.NewTable(times, names, cols)
	if err != nil {
		return nil, err
	}
	return tbl.WithLongNames(longNames), nil
}

func rangeLongName(probe string, rg Range) string {
	if math.IsInf(rg.Upper, 1) {
		return fmt.Sprintf("%s number concentration, upper edge >= %g um", probe, rg.Lower)
	}
	return fmt.Sprintf("%s number concentration, upper edge %g-%g um", probe, rg.Lower, rg.Upper)
}
