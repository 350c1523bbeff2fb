package ncio

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeUnits is a parsed CF "<unit> since <reference>" attribute.
type TimeUnits struct {
	Step     time.Duration
	Base     time.Time
	Calendar string
}

var baseLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// ParseTimeUnits parses a CF time units string. An empty calendar means
// the standard calendar.
func ParseTimeUnits(units, calendar string) (TimeUnits, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return TimeUnits{}, fmt.Errorf("ncio: time units %q lack a reference time", units)
	}

	var tu TimeUnits
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "sec", "s":
		tu.Step = time.Second
	case "minutes", "minute", "mins", "min":
		tu.Step = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		tu.Step = time.Hour
	case "days", "day", "d":
		tu.Step = 24 * time.Hour
	default:
		return TimeUnits{}, fmt.Errorf("ncio: unsupported time unit %q", unit)
	}

	ref = strings.TrimSpace(ref)
	// Drop fractional seconds such as "00:00:00.0".
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		if j := strings.Index(ref[i:], "."); j >= 0 {
			k := i + j + 1
			for k < len(ref) && ref[k] >= '0' && ref[k] <= '9' {
				k++
			}
			ref = ref[:i+j] + ref[k:]
		}
	}
	ref = strings.TrimSuffix(strings.TrimSuffix(ref, " UTC"), " GMT")

	var err error
	for _, layout := range baseLayouts {
		if tu.Base, err = time.Parse(layout, ref); err == nil {
			break
		}
	}
	if err != nil {
		return TimeUnits{}, fmt.Errorf("ncio: cannot parse reference time %q", ref)
	}
	tu.Base = tu.Base.UTC()

	switch cal := strings.ToLower(calendar); cal {
	case "", "standard", "gregorian", "proleptic_gregorian":
		tu.Calendar = "standard"
	case "noleap", "365_day":
		tu.Calendar = "noleap"
	default:
		return TimeUnits{}, fmt.Errorf("ncio: unsupported calendar %q", calendar)
	}
	return tu, nil
}

// Decode converts offsets to UTC times rounded to the nearest second. NaN
// offsets decode to the zero time.
func (tu TimeUnits) Decode(vals []float64) []time.Time {
	out := make([]time.Time, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		secs := math.Round(v * tu.Step.Seconds())
		if tu.Calendar == "noleap" {
			out[i] = addNoLeap(tu.Base, int64(secs))
			continue
		}
		out[i] = tu.Base.Add(time.Duration(secs) * time.Second)
	}
	return out
}

var noLeapDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// addNoLeap adds secs to base in a calendar with 365-day years.
func addNoLeap(base time.Time, secs int64) time.Time {
	const day = 86400
	doy := 0
	for m := 0; m < int(base.Month())-1; m++ {
		doy += noLeapDays[m]
	}
	doy += base.Day() - 1
	sod := int64(base.Hour()*3600 + base.Minute()*60 + base.Second())

	total := int64(doy)*day + sod + secs
	years := floorDiv(total, 365*day)
	rem := total - years*365*day
	d := int(rem / day)
	sod = rem % day

	month := 0
	for month < 11 && d >= noLeapDays[month] {
		d -= noLeapDays[month]
		month++
	}
	return time.Date(base.Year()+int(years), time.Month(month+1), d+1, 0, 0, 0, 0, time.UTC).
		Add(time.Duration(sod) * time.Second)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Times reads and decodes the time coordinate variable v.
func (d *Dataset) Times(v string) ([]time.Time, error) {
	vals, err := d.Float64s(v)
	if err != nil {
		return nil, err
	}
	tu, err := ParseTimeUnits(d.StringAttr(v, "units"), d.StringAttr(v, "calendar"))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", d.Path, v, err)
	}
	return tu.Decode(vals), nil
}

// EncodeSeconds converts times to seconds since base.
func EncodeSeconds(times []time.Time, base time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t.Sub(base).Seconds()
	}
	return out
}
