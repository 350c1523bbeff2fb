package ncio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/obs"
)

// Variables of a segment file. Every row belongs to the segment named by
// its (block_label, block_index) pair.
const (
	SegmentDimension     = "index"
	SegmentLabelVariable = "block_label"
	SegmentIndexVariable = "block_index"

	// Columns added to a flight by a regime join.
	RegimeColumn      = "cloud_regime"
	RegimeIndexColumn = "cloud_regime_index"
)

// ErrNoSegments means there was nothing to write or read.
var ErrNoSegments = errors.New("ncio: no segments")

// RegimeBlock is one segment read back from a segment file.
type RegimeBlock struct {
	// Flight is the file name up to its first dot, e.g. "RF01".
	Flight string
	Code   int
	Label  string
	Index  int
	Table  *obs.Table
}

// WriteSegments writes the extracted segments as a flat table along the
// index dimension. block_label holds the category code described by the
// CF flag_values and flag_meanings attributes; block_index holds the
// composite block id. Columns missing from a segment are written as NaN.
func WriteSegments(path string, segs blocks.Collections, attrs map[string]string) error {
	var rows int
	var columns []string
	longNames := make(map[string]string)
	seen := map[string]bool{DefaultTimeVariable: true, SegmentLabelVariable: true, SegmentIndexVariable: true}
	for _, c := range blocks.Categories {
		for _, s := range segs[c] {
			rows += s.Table.Len()
			for _, col := range s.Table.Columns() {
				if !seen[col] {
					seen[col] = true
					columns = append(columns, col)
					longNames[col] = s.Table.LongName(col)
				}
			}
		}
	}
	if rows == 0 {
		return ErrNoSegments
	}

	h := cdf.NewHeader([]string{SegmentDimension}, []int{rows})
	for _, k := range sortedKeys(attrs) {
		h.AddAttribute("", k, attrs[k])
	}
	h.AddVariable(DefaultTimeVariable, []string{SegmentDimension}, []float64{0})
	h.AddAttribute(DefaultTimeVariable, "units", ProductTimeUnits)
	h.AddAttribute(DefaultTimeVariable, "calendar", "standard")

	flags := make([]int32, len(blocks.Categories))
	meanings := make([]string, len(blocks.Categories))
	for i, c := range blocks.Categories {
		flags[i] = int32(i)
		meanings[i] = strings.ReplaceAll(string(c), " ", "_")
	}
	h.AddVariable(SegmentLabelVariable, []string{SegmentDimension}, []int32{0})
	h.AddAttribute(SegmentLabelVariable, "long_name", "segment category")
	h.AddAttribute(SegmentLabelVariable, "flag_values", flags)
	h.AddAttribute(SegmentLabelVariable, "flag_meanings", strings.Join(meanings, " "))
	h.AddVariable(SegmentIndexVariable, []string{SegmentDimension}, []int32{0})
	h.AddAttribute(SegmentIndexVariable, "long_name", "composite block id")

	for _, col := range columns {
		h.AddVariable(col, []string{SegmentDimension}, []float64{0})
		h.AddAttribute(col, "long_name", longNames[col])
	}
	h.Define()
	for _, err := range h.Check() {
		if err != nil {
			return fmt.Errorf("ncio: segment header: %w", err)
		}
	}

	var times []time.Time
	labels := make([]int32, 0, rows)
	ids := make([]int32, 0, rows)
	data := make(map[string][]float64, len(columns))
	for code, c := range blocks.Categories {
		for _, s := range segs[c] {
			n := s.Table.Len()
			times = append(times, s.Table.Times()...)
			for i := 0; i < n; i++ {
				labels = append(labels, int32(code))
				ids = append(ids, int32(s.BlockID))
			}
			for _, col := range columns {
				v, ok := s.Table.Column(col)
				if !ok {
					v = make([]float64, n)
					for i := range v {
						v[i] = math.NaN()
					}
				}
				data[col] = append(data[col], v...)
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("ncio: create %s: %w", path, err)
	}
	write := func(name string, v interface{}) error {
		if _, err := nc.Writer(name, []int{0}, []int{rows}).Write(v); err != nil {
			return fmt.Errorf("ncio: write %s: %w", name, err)
		}
		return nil
	}
	if err := write(DefaultTimeVariable, EncodeSeconds(times, epoch)); err != nil {
		return err
	}
	if err := write(SegmentLabelVariable, labels); err != nil {
		return err
	}
	if err := write(SegmentIndexVariable, ids); err != nil {
		return err
	}
	for _, col := range columns {
		if err := write(col, data[col]); err != nil {
			return err
		}
	}
	return f.Close()
}

// ReadCloudRegimes reads segment files and splits their rows into one
// block per (block_label, block_index) pair, in order of first
// appearance. Every other variable on the index dimension becomes a
// column.
func ReadCloudRegimes(paths []string) ([]RegimeBlock, error) {
	var out []RegimeBlock
	for _, p := range paths {
		bs, err := readRegimes(p)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	if len(out) == 0 {
		return nil, ErrNoSegments
	}
	return out, nil
}

func readRegimes(path string) ([]RegimeBlock, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	times, err := d.Times(DefaultTimeVariable)
	if err != nil {
		return nil, err
	}
	codes, err := d.Float64s(SegmentLabelVariable)
	if err != nil {
		return nil, err
	}
	ids, err := d.Float64s(SegmentIndexVariable)
	if err != nil {
		return nil, err
	}
	if len(codes) != len(times) || len(ids) != len(times) {
		return nil, fmt.Errorf("ncio: %s: block variables do not match %d times", path, len(times))
	}
	names := flagMeanings(d)

	var columns []string
	var data [][]float64
	longNames := make(map[string]string)
	for _, v := range d.Variables() {
		if v == DefaultTimeVariable || v == SegmentLabelVariable || v == SegmentIndexVariable || !d.hasDims(v, SegmentDimension) {
			continue
		}
		vals, err := d.Float64s(v)
		if err != nil {
			return nil, err
		}
		columns = append(columns, v)
		data = append(data, vals)
		if ln := d.StringAttr(v, "long_name"); ln != "" {
			longNames[v] = ln
		}
	}

	type key struct{ code, id int }
	var order []key
	rows := make(map[key][]int)
	for i := range times {
		if math.IsNaN(codes[i]) || math.IsNaN(ids[i]) {
			continue
		}
		k := key{int(codes[i]), int(ids[i])}
		if _, ok := rows[k]; !ok {
			order = append(order, k)
		}
		rows[k] = append(rows[k], i)
	}

	flight, _, _ := strings.Cut(filepath.Base(path), ".")
	out := make([]RegimeBlock, 0, len(order))
	for _, k := range order {
		idx := rows[k]
		bt := make([]time.Time, len(idx))
		bd := make([][]float64, len(columns))
		for j, r := range idx {
			bt[j] = times[r]
		}
		for c := range columns {
			bd[c] = make([]float64, len(idx))
			for j, r := range idx {
				bd[c][j] = data[c][r]
			}
		}
		tbl, err := obs.NewTable(bt, columns, bd)
		if err != nil {
			return nil, err
		}
		label, ok := names[k.code]
		if !ok {
			label = strconv.Itoa(k.code)
		}
		out = append(out, RegimeBlock{
			Flight: flight,
			Code:   k.code,
			Label:  label,
			Index:  k.id,
			Table:  tbl.WithLongNames(longNames),
		})
	}
	return out, nil
}

// flagMeanings maps the flag values of block_label to their meanings with
// underscores turned back into spaces.
func flagMeanings(d *Dataset) map[int]string {
	values := d.NumberAttr(SegmentLabelVariable, "flag_values")
	meanings := strings.Fields(d.StringAttr(SegmentLabelVariable, "flag_meanings"))
	out := make(map[int]string, len(values))
	for i, v := range values {
		if i < len(meanings) {
			out[int(v)] = strings.ReplaceAll(meanings[i], "_", " ")
		}
	}
	return out
}

// RegimeTable stacks regime blocks into a table for time joins, with the
// category code in RegimeColumn and the block id in RegimeIndexColumn.
func RegimeTable(bs []RegimeBlock) (*obs.Table, error) {
	if len(bs) == 0 {
		return nil, ErrNoSegments
	}
	var times []time.Time
	var codes, ids []float64
	var legend []string
	seen := make(map[int]bool)
	for _, b := range bs {
		times = append(times, b.Table.Times()...)
		for i := 0; i < b.Table.Len(); i++ {
			codes = append(codes, float64(b.Code))
			ids = append(ids, float64(b.Index))
		}
		if !seen[b.Code] {
			seen[b.Code] = true
			legend = append(legend, fmt.Sprintf("%d=%s", b.Code, b.Label))
		}
	}
	tbl, err := obs.NewTable(times, []string{RegimeColumn, RegimeIndexColumn}, [][]float64{codes, ids})
	if err != nil {
		return nil, err
	}
	return tbl.WithLongNames(map[string]string{
		RegimeColumn:      "cloud regime (" + strings.Join(legend, ", ") + ")",
		RegimeIndexColumn: "cloud regime block id",
	}), nil
}
