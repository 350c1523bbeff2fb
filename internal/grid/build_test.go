package grid

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chrissnell/inform/internal/obs"
)

var t0 = time.Date(2023, 2, 12, 22, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

// uniformModel has a 10x10 grid at 1 degree spacing starting at (0N, 100E)
// and 20 levels at 100, 150, ..., 1050 hPa over a uniform 1000 hPa surface.
func uniformModel() *Model {
	m := &Model{P0: 100000}
	for i := 0; i < 10; i++ {
		m.Lat = append(m.Lat, float64(i))
		m.Lon = append(m.Lon, 100+float64(i))
	}
	m.PS = make([][]float64, 10)
	for j := range m.PS {
		m.PS[j] = make([]float64, 10)
		for i := range m.PS[j] {
			m.PS[j][i] = 100000
		}
	}
	for k := 0; k < 20; k++ {
		m.A = append(m.A, 0.1+0.02*float64(k))
		m.B = append(m.B, 0.03*float64(k))
	}
	return m
}

type sample struct {
	sec               float64
	lat, lon, p, temp float64
}

func flight(t *testing.T, samples []sample) *obs.Table {
	t.Helper()
	times := make([]time.Time, len(samples))
	cols := make([][]float64, 4)
	for i, s := range samples {
		times[i] = at(s.sec)
		cols[0] = append(cols[0], s.lat)
		cols[1] = append(cols[1], s.lon)
		cols[2] = append(cols[2], s.p)
		cols[3] = append(cols[3], s.temp)
	}
	tbl, err := obs.NewTable(times, []string{"GGLAT", "GGLON", "PSXC", "ATX"}, cols)
	if err != nil {
		t.Fatal(err)
	}
	return tbl.WithLongNames(map[string]string{"ATX": "Ambient Temperature, Reference"})
}

func TestProfile(t *testing.T) {
	prof := uniformModel().Profile(3, 4, 0.01)
	for k, p := range prof {
		if want := 100 + 50*float64(k); math.Abs(p-want) > 1e-9 {
			t.Fatalf("level %d = %v hPa, want %v", k, p, want)
		}
	}
}

func TestWindowVerticalExtent(t *testing.T) {
	// Pressures spanning levels 5 (350 hPa) to 10 (600 hPa).
	var samples []sample
	for i := 0; i <= 50; i++ {
		samples = append(samples, sample{
			sec:  float64(i),
			lat:  3.2 + 2.5*float64(i)/50,
			lon:  103.2 + 2.5*float64(i)/50,
			p:    350 + 5*float64(i),
			temp: -20,
		})
	}
	tbl := flight(t, samples)
	m := uniformModel()
	b := NewBuilder(DefaultConfig(), obs.DefaultRoles(), nil)

	bd, err := b.Window(m, tbl)
	if err != nil {
		t.Fatal(err)
	}
	want := Bounds{Lat: [2]int{2, 7}, Lon: [2]int{2, 7}, Alt: [2]int{4, 11}}
	if diff := cmp.Diff(want, bd); diff != "" {
		t.Errorf("bounds (-want +got):\n%s", diff)
	}

	// Every column in the window agrees on the vertical extent.
	for j := bd.Lat[0]; j <= bd.Lat[1]; j++ {
		for i := bd.Lon[0]; i <= bd.Lon[1]; i++ {
			prof := m.Profile(j, i, 0.01)
			if lo, hi := nearest(prof, 350), nearest(prof, 600); lo != 5 || hi != 10 {
				t.Errorf("column (%d,%d) spans levels %d..%d", j, i, lo, hi)
			}
		}
	}

	p, err := b.Build(context.Background(), m, []time.Time{at(10), at(40)}, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if nAlt, nLat, nLon := p.Bounds.Shape(); nAlt != 8 || nLat != 6 || nLon != 6 {
		t.Errorf("shape = %d x %d x %d, want 8 x 6 x 6", nAlt, nLat, nLon)
	}
	if p.Fields["ATX"].NAlt != 8 {
		t.Errorf("field shape not matching bounds")
	}
}

// twoCellFlight puts rows 0-4 at 580 hPa and rows 5-29 at 480 hPa in the
// same column; row 29 sits below the lowest model level. Temperature steps
// 10, 20, 30 across the three comparison windows.
func twoCellFlight(t *testing.T) *obs.Table {
	var samples []sample
	for i := 0; i < 30; i++ {
		s := sample{sec: float64(i), lat: 4.5, lon: 104.5, p: 480}
		switch {
		case i <= 10:
			s.temp = 10
		case i <= 20:
			s.temp = 20
		default:
			s.temp = 30
		}
		if i < 5 {
			s.p = 580
		}
		if i == 29 {
			s.p = 1100
		}
		samples = append(samples, s)
	}
	return flight(t, samples)
}

func TestBuildLastWindowWins(t *testing.T) {
	tbl := twoCellFlight(t)
	b := NewBuilder(DefaultConfig(), obs.DefaultRoles(), nil)
	p, err := b.Build(context.Background(), uniformModel(), []time.Time{at(20), at(10), at(999)}, tbl)
	if err != nil {
		t.Fatal(err)
	}

	if p.Windows != 3 {
		t.Errorf("windows = %d, want 3", p.Windows)
	}
	if p.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", p.Dropped)
	}
	if len(p.Cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(p.Cells))
	}

	tests := []struct {
		temp, alt float64
		mid       time.Time
	}{
		// 580 hPa cell, written once by rows 0-4.
		{10, 580, at(2)},
		// 480 hPa cell, overwritten by the last window (rows 21-28).
		{30, 480, at(24.5)},
	}
	for i, tt := range tests {
		c := p.Cells[i]
		if c.Values["ATX"] != tt.temp {
			t.Errorf("cell %d ATX = %v, want %v", i, c.Values["ATX"], tt.temp)
		}
		if c.Altitude != tt.alt || c.Latitude != 4.5 || c.Longitude != 104.5 {
			t.Errorf("cell %d centroid = (%v, %v, %v)", i, c.Latitude, c.Longitude, c.Altitude)
		}
		if !c.Time.Equal(tt.mid) {
			t.Errorf("cell %d mid-time = %v, want %v", i, c.Time, tt.mid)
		}
	}

	pc := p.Populated()
	if pc.Len() != 2 || len(pc.Values["PSXC"]) != 2 {
		t.Errorf("populated view has %d rows", pc.Len())
	}
	if pc.LongNames["ATX"] != "Ambient Temperature, Reference" {
		t.Errorf("long name = %q", pc.LongNames["ATX"])
	}
}

func TestBuildIdempotent(t *testing.T) {
	tbl := twoCellFlight(t)
	b := NewBuilder(DefaultConfig(), obs.DefaultRoles(), nil)
	ref := []time.Time{at(10), at(20)}

	first, err := b.Build(context.Background(), uniformModel(), ref, tbl)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build(context.Background(), uniformModel(), ref, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first.Cells, second.Cells, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("rebuild differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Fields, second.Fields, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("fields differ (-first +second):\n%s", diff)
	}
}

func TestBuildDropsZeroReference(t *testing.T) {
	var samples []sample
	for i := 0; i < 10; i++ {
		samples = append(samples, sample{sec: float64(i), lat: 4.5, lon: 104.5, p: 480, temp: 0})
	}
	b := NewBuilder(DefaultConfig(), obs.DefaultRoles(), nil)
	p, err := b.Build(context.Background(), uniformModel(), []time.Time{at(5)}, flight(t, samples))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Cells) != 0 {
		t.Errorf("zero-temperature cell emitted: %+v", p.Cells)
	}
	if p.Windows != 2 {
		t.Errorf("windows = %d, want 2", p.Windows)
	}
}

func TestBuildErrors(t *testing.T) {
	tbl := twoCellFlight(t)
	b := NewBuilder(DefaultConfig(), obs.DefaultRoles(), nil)

	_, err := b.Build(context.Background(), uniformModel(), []time.Time{at(0.5)}, tbl)
	if !errors.Is(err, ErrNoCommonTimes) {
		t.Errorf("no common times: err = %v", err)
	}

	roles := obs.DefaultRoles().Merge(obs.Roles{obs.RolePressure: "PALT"})
	_, err = NewBuilder(DefaultConfig(), roles, nil).Build(context.Background(), uniformModel(), []time.Time{at(10)}, tbl)
	if !errors.Is(err, obs.ErrMissingEssentialField) {
		t.Errorf("missing pressure: err = %v", err)
	}

	bad := uniformModel()
	bad.B = bad.B[:3]
	_, err = b.Build(context.Background(), bad, []time.Time{at(10)}, tbl)
	if !errors.Is(err, ErrInvalidModel) {
		t.Errorf("bad model: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx, uniformModel(), []time.Time{at(10)}, tbl)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}
}

func TestComparisonTimes(t *testing.T) {
	aircraft := []time.Time{at(0), at(1), at(2), at(3)}
	got, err := ComparisonTimes([]time.Time{at(-5), at(1), at(1), at(3), at(7)}, aircraft, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{at(1).Add(-30 * time.Minute), at(1), at(3), at(3).Add(30 * time.Minute)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComparisonTimes (-want +got):\n%s", diff)
	}
}

func TestBin(t *testing.T) {
	axis := []float64{2, 3, 4, 5}
	tests := []struct {
		x    float64
		want int
	}{
		{1.9, -1},
		{2, 0},
		{2.5, 0},
		{4.99, 2},
		{5, 3},
		{math.NaN(), 3},
	}
	for _, tt := range tests {
		if got := bin(axis, tt.x); got != tt.want {
			t.Errorf("bin(%v) = %d, want %d", tt.x, got, tt.want)
		}
	}
}
