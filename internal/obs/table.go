// Package obs holds the columnar observation table shared by the
// segmentation, gridding and join stages.
package obs

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Table is an ordered, columnar set of aircraft samples. Column slices are
// never modified after construction, so derived tables may share them.
type Table struct {
	times     []time.Time
	names     []string
	cols      map[string][]float64
	longNames map[string]string
}

// NewTable builds a table from parallel column slices and stably sorts the
// rows by time. Rows with equal timestamps keep their input order.
func NewTable(times []time.Time, names []string, data [][]float64) (*Table, error) {
	if len(names) != len(data) {
		return nil, fmt.Errorf("obs: %d column names for %d columns", len(names), len(data))
	}

	t := &Table{
		cols:      make(map[string][]float64, len(names)),
		longNames: make(map[string]string),
	}

	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})

	t.times = make([]time.Time, len(times))
	for i, src := range order {
		t.times[i] = times[src]
	}

	for i, name := range names {
		if _, dup := t.cols[name]; dup {
			return nil, fmt.Errorf("obs: duplicate column %q", name)
		}
		if len(data[i]) != len(times) {
			return nil, fmt.Errorf("obs: column %q has %d rows, want %d", name, len(data[i]), len(times))
		}
		col := make([]float64, len(times))
		for j, src := range order {
			col[j] = data[i][src]
		}
		t.names = append(t.names, name)
		t.cols[name] = col
	}

	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.times)
}

// Times returns the row timestamps. Callers must not modify the slice.
func (t *Table) Times() []time.Time {
	return t.times
}

// Time returns the timestamp of row i.
func (t *Table) Time(i int) time.Time {
	return t.times[i]
}

// Start returns the first timestamp, or the zero time for an empty table.
func (t *Table) Start() time.Time {
	if len(t.times) == 0 {
		return time.Time{}
	}
	return t.times[0]
}

// End returns the last timestamp, or the zero time for an empty table.
func (t *Table) End() time.Time {
	if len(t.times) == 0 {
		return time.Time{}
	}
	return t.times[len(t.times)-1]
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the values of the named column. Callers must not modify
// the slice.
func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// Value returns one cell, or NaN when the column is absent.
func (t *Table) Value(name string, row int) float64 {
	c, ok := t.cols[name]
	if !ok {
		return math.NaN()
	}
	return c[row]
}

// LongName returns the descriptive name of a column, falling back to the
// column name itself.
func (t *Table) LongName(name string) string {
	if ln, ok := t.longNames[name]; ok && ln != "" {
		return ln
	}
	return name
}

// LongNames returns a copy of the long-name metadata.
func (t *Table) LongNames() map[string]string {
	out := make(map[string]string, len(t.longNames))
	for k, v := range t.longNames {
		out[k] = v
	}
	return out
}

// WithLongNames returns a shallow copy of t carrying the given long names.
func (t *Table) WithLongNames(ln map[string]string) *Table {
	out := t.clone()
	for k, v := range ln {
		out.longNames[k] = v
	}
	return out
}

// WithColumn returns a new table with the named column added or replaced.
func (t *Table) WithColumn(name string, values []float64, longName string) (*Table, error) {
	if len(values) != len(t.times) {
		return nil, fmt.Errorf("obs: column %q has %d rows, want %d", name, len(values), len(t.times))
	}
	out := t.clone()
	if _, ok := out.cols[name]; !ok {
		out.names = append(out.names, name)
	}
	out.cols[name] = values
	if longName != "" {
		out.longNames[name] = longName
	}
	return out, nil
}

// Subset returns a new table holding the given rows in the given order.
func (t *Table) Subset(rows []int) *Table {
	out := &Table{
		times:     make([]time.Time, len(rows)),
		names:     append([]string(nil), t.names...),
		cols:      make(map[string][]float64, len(t.cols)),
		longNames: make(map[string]string, len(t.longNames)),
	}
	for i, r := range rows {
		out.times[i] = t.times[r]
	}
	for name, src := range t.cols {
		col := make([]float64, len(rows))
		for i, r := range rows {
			col[i] = src[r]
		}
		out.cols[name] = col
	}
	for k, v := range t.longNames {
		out.longNames[k] = v
	}
	return out
}

// Range returns the minimum and maximum finite values of a column. ok is
// false when the column is absent or holds no finite value.
func (t *Table) Range(name string) (lo, hi float64, ok bool) {
	c, present := t.cols[name]
	if !present {
		return 0, 0, false
	}
	return FiniteRange(c)
}

// Require checks that every listed role is mapped to a present column whose
// values are all finite. A NaN or Inf sample leaves its row unattributable,
// so the error names the first such row.
func (t *Table) Require(roles Roles, want ...Role) error {
	for _, role := range want {
		name := roles.Column(role)
		if name == "" {
			return &FieldError{Role: role, Err: ErrMissingEssentialField}
		}
		c, ok := t.cols[name]
		if !ok {
			return &FieldError{Role: role, Column: name, Err: ErrMissingEssentialField}
		}
		for i, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &FieldError{
					Role:   role,
					Column: name,
					Err:    fmt.Errorf("%w: non-finite value at row %d (%s)", ErrMissingEssentialField, i, t.times[i].Format(time.RFC3339)),
				}
			}
		}
	}
	return nil
}

func (t *Table) clone() *Table {
	out := &Table{
		times:     t.times,
		names:     append([]string(nil), t.names...),
		cols:      make(map[string][]float64, len(t.cols)+1),
		longNames: make(map[string]string, len(t.longNames)),
	}
	for k, v := range t.cols {
		out.cols[k] = v
	}
	for k, v := range t.longNames {
		out.longNames[k] = v
	}
	return out
}

// FiniteRange returns the min and max of the finite values in v.
func FiniteRange(v []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		ok = true
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
