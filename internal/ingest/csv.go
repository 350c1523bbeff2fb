// Package ingest reads observation and radar tables exported as CSV, for
// campaigns whose products are not distributed as netCDF.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/chrissnell/inform/internal/join"
	"github.com/chrissnell/inform/internal/obs"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTime accepts RFC 3339 and the space-separated variant. Times
// without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ingest: cannot parse time %q", s)
}

// ParseValue reads a numeric cell. Empty, "NaN", "NA" and "null" cells are
// NaN.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadObservations reads a wide CSV table whose header names the time
// column and any number of numeric columns.
func ReadObservations(r io.Reader, timeColumn string) (*obs.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}
	ti := -1
	var names []string
	for i, h := range header {
		if h == timeColumn {
			ti = i
			continue
		}
		names = append(names, h)
	}
	if ti < 0 {
		return nil, &obs.FieldError{Role: "time", Column: timeColumn, Err: obs.ErrMissingEssentialField}
	}

	var times []time.Time
	cols := make([][]float64, len(names))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: line %d: %w", line, err)
		}
		t, err := ParseTime(rec[ti])
		if err != nil {
			return nil, fmt.Errorf("ingest: line %d: %w", line, err)
		}
		times = append(times, t)

		c := 0
		for i, cell := range rec {
			if i == ti {
				continue
			}
			v, err := ParseValue(cell)
			if err != nil {
				return nil, fmt.Errorf("ingest: line %d column %q: %w", line, header[i], err)
			}
			cols[c] = append(cols[c], v)
			c++
		}
	}
	return obs.NewTable(times, names, cols)
}

// EchoRecord is one row of a radar echo-type export.
type EchoRecord struct {
	Time     string `csv:"time"`
	EchoType string `csv:"echo_type"`
}

// ReadEchoTypes reads a two-column time,echo_type CSV into a table with a
// single Echo_Type column.
func ReadEchoTypes(r io.Reader) (*obs.Table, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("ingest: echo header: %w", err)
	}
	var recs []EchoRecord
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("ingest: decode echo types: %w", err)
	}

	times := make([]time.Time, len(recs))
	vals := make([]float64, len(recs))
	for i, rec := range recs {
		if times[i], err = ParseTime(rec.Time); err != nil {
			return nil, err
		}
		if vals[i], err = ParseValue(rec.EchoType); err != nil {
			return nil, fmt.Errorf("ingest: echo row %d: %w", i+1, err)
		}
	}
	return obs.NewTable(times, []string{join.EchoTypeColumn}, [][]float64{vals})
}
