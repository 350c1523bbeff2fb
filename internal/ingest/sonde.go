package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/obs"
)

const (
	releaseMarker = "Nominal Release Time"
	releaseLayout = "2006, 01, 02, 15:04:05"
	// sondeMissing marks a missing value in any column of a .cls record.
	sondeMissing = "9999.0"
	// SondePrefix prefixes sounding columns once joined onto a flight.
	SondePrefix = "sonde_"
)

// ErrNoSoundings means a .cls file holds no release header.
var ErrNoSoundings = errors.New("ingest: no soundings found")

// Sounding is one dropsonde profile. Table times are the release time plus
// the elapsed seconds of each record.
type Sounding struct {
	Release time.Time
	Table   *obs.Table
}

// FindSoundings lists the .cls files in dir in name order.
func FindSoundings(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.cls"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadSoundingFile reads every sounding in a .cls file.
func ReadSoundingFile(path string, logger *zap.SugaredLogger) ([]Sounding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ss, err := ReadSoundings(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ss, nil
}

// ReadSoundings splits a .cls stream on its release headers and reads the
// table following each one. Records with the wrong field count or with any
// 9999.0 field are dropped. Entries without a parsable release time or a
// column header are logged and skipped.
func ReadSoundings(r io.Reader, logger *zap.SugaredLogger) ([]Sounding, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read sounding: %w", err)
	}

	var starts []int
	for i, l := range lines {
		if strings.Contains(l, releaseMarker) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return nil, ErrNoSoundings
	}

	var out []Sounding
	for n, start := range starts {
		end := len(lines)
		if n+1 < len(starts) {
			end = starts[n+1]
		}
		s, err := readSounding(lines[start:end])
		if err != nil {
			logger.Warnw("skipping sounding", "line", start+1, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func readSounding(lines []string) (Sounding, error) {
	release, err := parseRelease(lines[0])
	if err != nil {
		return Sounding{}, err
	}

	header := -1
	for i := 0; i < len(lines)-2; i++ {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, "Time") && strings.Contains(l, "Press") {
			header = i
			break
		}
	}
	if header < 0 {
		return Sounding{}, errors.New("no column header")
	}

	columns := strings.Fields(lines[header])
	units := strings.Fields(lines[header+1])
	if columns[0] != "Time" {
		return Sounding{}, fmt.Errorf("first column is %q, want Time", columns[0])
	}

	var times []time.Time
	data := make([][]float64, len(columns)-1)
records:
	for _, l := range lines[header+3:] {
		fields := strings.Fields(l)
		if len(fields) != len(columns) {
			continue
		}
		for _, f := range fields {
			if f == sondeMissing {
				continue records
			}
		}
		sec, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		times = append(times, release.Add(time.Duration(math.Round(sec*1e3))*time.Millisecond))
		for c, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				v = math.NaN()
			}
			data[c] = append(data[c], v)
		}
	}
	if len(times) == 0 {
		return Sounding{}, errors.New("no complete records")
	}

	tbl, err := obs.NewTable(times, columns[1:], data)
	if err != nil {
		return Sounding{}, err
	}
	longNames := make(map[string]string, len(columns)-1)
	if len(units) == len(columns) {
		for i, c := range columns[1:] {
			longNames[c] = fmt.Sprintf("%s (%s)", c, units[i+1])
		}
	}
	return Sounding{Release: release, Table: tbl.WithLongNames(longNames)}, nil
}

func parseRelease(line string) (time.Time, error) {
	_, after, ok := strings.Cut(line, "):")
	if !ok {
		return time.Time{}, fmt.Errorf("release line %q has no value", line)
	}
	t, err := time.Parse(releaseLayout, strings.TrimSpace(after))
	if err != nil {
		return time.Time{}, fmt.Errorf("release time: %w", err)
	}
	return t, nil
}

// SoundingsTable stacks soundings into one table for time joins. Columns
// are the union of the sounding columns with SondePrefix added; a sounding
// lacking a column contributes NaN.
func SoundingsTable(ss []Sounding) (*obs.Table, error) {
	if len(ss) == 0 {
		return nil, ErrNoSoundings
	}
	var names []string
	longNames := make(map[string]string)
	seen := make(map[string]bool)
	for _, s := range ss {
		for _, c := range s.Table.Columns() {
			if !seen[c] {
				seen[c] = true
				names = append(names, c)
				longNames[SondePrefix+c] = "dropsonde " + s.Table.LongName(c)
			}
		}
	}

	var times []time.Time
	data := make([][]float64, len(names))
	for _, s := range ss {
		times = append(times, s.Table.Times()...)
		for i, c := range names {
			col, ok := s.Table.Column(c)
			if !ok {
				col = make([]float64, s.Table.Len())
				for j := range col {
					col[j] = math.NaN()
				}
			}
			data[i] = append(data[i], col...)
		}
	}

	prefixed := make([]string, len(names))
	for i, c := range names {
		prefixed[i] = SondePrefix + c
	}
	tbl, err := obs.NewTable(times, prefixed, data)
	if err != nil {
		return nil, err
	}
	return tbl.WithLongNames(longNames), nil
}
