// Package ncio reads flight, model, radar and reanalysis netCDF files and
// writes the gridded comparison product.
package ncio

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/ctessum/cdf"
)

// Dataset is an open netCDF classic file.
type Dataset struct {
	Path string
	f    *os.File
	cdf  *cdf.File
}

// Open opens a netCDF classic file for reading.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ncio: %s: %w", path, err)
	}
	return &Dataset{Path: path, f: f, cdf: nc}, nil
}

// Close releases the underlying file.
func (d *Dataset) Close() error {
	return d.f.Close()
}

// Variables lists the variable names in file order.
func (d *Dataset) Variables() []string {
	return d.cdf.Header.Variables()
}

// Has reports whether the file holds variable v.
func (d *Dataset) Has(v string) bool {
	for _, n := range d.cdf.Header.Variables() {
		if n == v {
			return true
		}
	}
	return false
}

// Dimensions returns the dimension names of v.
func (d *Dataset) Dimensions(v string) []string {
	return d.cdf.Header.Dimensions(v)
}

// Lengths returns the dimension lengths of v.
func (d *Dataset) Lengths(v string) []int {
	return d.cdf.Header.Lengths(v)
}

// StringAttr returns a text attribute of v, or of the file when v is
// empty. Missing or non-text attributes give "".
func (d *Dataset) StringAttr(v, name string) string {
	s, _ := d.cdf.Header.GetAttribute(v, name).(string)
	return strings.TrimRight(s, "\x00")
}

// NumberAttr returns the numeric attribute values of v as float64.
func (d *Dataset) NumberAttr(v, name string) []float64 {
	switch a := d.cdf.Header.GetAttribute(v, name).(type) {
	case []float64:
		return a
	case []float32:
		return widen(a)
	case []int32:
		return widen(a)
	case []int16:
		return widen(a)
	case []int8:
		return widen(a)
	}
	return nil
}

// Float64s reads all of v, applying packing and fill attributes.
func (d *Dataset) Float64s(v string) ([]float64, error) {
	n := 1
	for _, l := range d.Lengths(v) {
		n *= l
	}
	return d.read(v, nil, nil, n)
}

// Record reads the values of v at index i of its leading dimension.
func (d *Dataset) Record(v string, i int) ([]float64, error) {
	lengths := d.Lengths(v)
	if len(lengths) == 0 || i < 0 || i >= lengths[0] {
		return nil, fmt.Errorf("ncio: %s has no record %d", v, i)
	}
	n := 1
	for _, l := range lengths[1:] {
		n *= l
	}
	begin := make([]int, len(lengths))
	end := make([]int, len(lengths))
	begin[0], end[0] = i, i+1
	return d.read(v, begin, end, n)
}

func (d *Dataset) read(v string, begin, end []int, n int) ([]float64, error) {
	if !d.Has(v) {
		return nil, fmt.Errorf("ncio: %s: no variable %q", d.Path, v)
	}
	buf := d.cdf.Header.ZeroValue(v, n)
	if buf == nil {
		return nil, fmt.Errorf("ncio: %s: variable %q has an unsupported type", d.Path, v)
	}
	if _, err := d.cdf.Reader(v, begin, end).Read(buf); err != nil {
		return nil, fmt.Errorf("ncio: %s: read %q: %w", d.Path, v, err)
	}

	var out []float64
	switch b := buf.(type) {
	case []float64:
		out = b
	case []float32:
		out = widen(b)
	case []int32:
		out = widen(b)
	case []int16:
		out = widen(b)
	case []int8:
		out = widen(b)
	default:
		return nil, fmt.Errorf("ncio: %s: variable %q is not numeric", d.Path, v)
	}
	d.unpack(v, out)
	return out, nil
}

// unpack replaces fill values with NaN and applies scale_factor and
// add_offset.
func (d *Dataset) unpack(v string, vals []float64) {
	var fills []float64
	fills = append(fills, d.NumberAttr(v, "_FillValue")...)
	fills = append(fills, d.NumberAttr(v, "missing_value")...)

	scale, offset := 1.0, 0.0
	if s := d.NumberAttr(v, "scale_factor"); len(s) > 0 {
		scale = s[0]
	}
	if o := d.NumberAttr(v, "add_offset"); len(o) > 0 {
		offset = o[0]
	}

	for i, x := range vals {
		for _, f := range fills {
			if x == f {
				x = math.NaN()
				break
			}
		}
		vals[i] = x*scale + offset
	}
}

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// hasDims reports whether v's dimensions equal want.
func (d *Dataset) hasDims(v string, want ...string) bool {
	got := d.Dimensions(v)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// axis returns the dimension of a one-dimensional coordinate variable.
func (d *Dataset) axis(v string) string {
	if dims := d.Dimensions(v); len(dims) == 1 {
		return dims[0]
	}
	return v
}
