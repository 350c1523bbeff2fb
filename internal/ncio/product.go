package ncio

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"

	"github.com/chrissnell/inform/internal/grid"
)

// ProductTimeUnits is the time encoding of written products.
const ProductTimeUnits = "seconds since 1970-01-01 00:00:00"

var epoch = time.Unix(0, 0).UTC()

// WriteProduct writes the populated cells to a netCDF file with a single
// time dimension: one time coordinate plus one variable per gridded
// field, each carrying its long name. attrs become global attributes.
func WriteProduct(path string, cells *grid.PopulatedCells, attrs map[string]string) error {
	if cells.Len() == 0 {
		return fmt.Errorf("ncio: no populated cells to write")
	}

	h := cdf.NewHeader([]string{"time"}, []int{cells.Len()})

	for _, k := range sortedKeys(attrs) {
		h.AddAttribute("", k, attrs[k])
	}
	h.AddAttribute("", "history", "created "+time.Now().UTC().Format(time.RFC3339))

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", ProductTimeUnits)
	h.AddAttribute("time", "calendar", "standard")
	h.AddAttribute("time", "long_name", "cell mid-time")

	for _, v := range cells.Variables {
		if v == "time" {
			return fmt.Errorf("ncio: variable name %q is reserved", v)
		}
		h.AddVariable(v, []string{"time"}, []float64{0})
		ln := cells.LongNames[v]
		if ln == "" {
			ln = v
		}
		h.AddAttribute(v, "long_name", ln)
	}
	h.Define()
	for _, err := range h.Check() {
		if err != nil {
			return fmt.Errorf("ncio: product header: %w", err)
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

	write := func(name string, data []float64) error {
		end := nc.Header.Lengths(name)
		start := make([]int, len(end))
		if _, err := nc.Writer(name, start, end).Write(data); err != nil {
			return fmt.Errorf("ncio: write %s: %w", name, err)
		}
		return nil
	}

	if err := write("time", EncodeSeconds(cells.Time, epoch)); err != nil {
		return err
	}
	for _, v := range cells.Variables {
		if err := write(v, cells.Values[v]); err != nil {
			return err
		}
	}
	return f.Close()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
