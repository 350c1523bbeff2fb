package join

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/obs"
)

var t0 = time.Date(2018, 1, 19, 23, 0, 0, 0, time.UTC)

func sec(s int) time.Time {
	return t0.Add(time.Duration(s) * time.Second)
}

func TestTimeIndexNearest(t *testing.T) {
	idx := NewTimeIndex([]time.Time{sec(10), sec(0), sec(4)})
	tests := []struct {
		at     time.Time
		tol    time.Duration
		want   int
		wantOK bool
	}{
		{sec(4), 0, 2, true},
		{sec(5), 0, 0, false},
		{sec(5), time.Second, 2, true},
		// Equidistant from 0 and 4 goes to the earlier sample.
		{sec(2), 2 * time.Second, 1, true},
		{sec(30), 5 * time.Second, 0, false},
		{sec(-1), time.Second, 1, true},
	}
	for _, tt := range tests {
		got, ok := idx.Nearest(tt.at, tt.tol)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("Nearest(%v, %v) = %d, %v; want %d, %v", tt.at.Sub(t0), tt.tol, got, ok, tt.want, tt.wantOK)
		}
	}
	if _, ok := NewTimeIndex(nil).Nearest(sec(0), time.Hour); ok {
		t.Error("empty index matched")
	}
}

func TestSpatialIndexNearest(t *testing.T) {
	lat := []float64{-60, -60, -55, -55, math.NaN()}
	lon := []float64{140, 150, 140, 150, 145}
	idx := NewSpatialIndex(lat, lon)
	if idx.Len() != 4 {
		t.Fatalf("indexed %d points, want 4", idx.Len())
	}

	tests := []struct {
		lat, lon float64
		want     int
	}{
		{-59, 141, 0},
		{-56, 149, 3},
		{-54.9, 140.2, 2},
		// Longitudes in 0-360 and -180-180 meet on the sphere.
		{-60, 150 - 360, 1},
	}
	for _, tt := range tests {
		got, _, ok := idx.Nearest(tt.lat, tt.lon)
		if !ok || got != tt.want {
			t.Errorf("Nearest(%v, %v) = %d, %v; want %d", tt.lat, tt.lon, got, ok, tt.want)
		}
	}

	_, km, _ := idx.Nearest(-59, 140)
	if math.Abs(km-111.2) > 0.5 {
		t.Errorf("one degree of latitude = %.1f km", km)
	}
	if _, _, ok := idx.Nearest(math.NaN(), 0); ok {
		t.Error("NaN query matched")
	}
}

func TestMemo(t *testing.T) {
	m, err := NewMemo(2)
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	fetch := func() (float64, error) {
		calls++
		return float64(calls), nil
	}
	m.Get("t", 0, 0, fetch)
	m.Get("t", 0, 0, fetch)
	m.Get("t", 0, 1, fetch)
	m.Get("t", 0, 2, fetch) // evicts (0, 0)
	v, _ := m.Get("t", 0, 0, fetch)

	if calls != 4 || v != 4 {
		t.Errorf("calls = %d, v = %v; want 4, 4", calls, v)
	}
	if hits, misses := m.Stats(); hits != 1 || misses != 4 {
		t.Errorf("hits/misses = %d/%d, want 1/4", hits, misses)
	}
	if m.Len() != 2 {
		t.Errorf("len = %d, want 2", m.Len())
	}
}

func segmentTable(t *testing.T, n int, lat, lon float64) *obs.Table {
	t.Helper()
	times := make([]time.Time, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	alt := make([]float64, n)
	for i := range times {
		times[i] = sec(i)
		lats[i], lons[i], alt[i] = lat, lon, 1000
	}
	tbl, err := obs.NewTable(times, []string{"GGLAT", "GGLON", "GGALT"}, [][]float64{lats, lons, alt})
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func collections(tbl *obs.Table) blocks.Collections {
	out := blocks.Collections{}
	for _, c := range blocks.Categories {
		out[c] = []blocks.Segment{}
	}
	rows := make([]int, tbl.Len())
	for i := range rows {
		rows[i] = i
	}
	out[blocks.InCloudLevelFT] = []blocks.Segment{{BlockID: 3, Rows: rows, Table: tbl}}
	return out
}

func TestAttachSeriesEchoType(t *testing.T) {
	seg := segmentTable(t, 5, -55, 145)
	echo, err := obs.NewTable(
		[]time.Time{sec(1), sec(2), sec(4), sec(7)},
		[]string{EchoTypeColumn},
		[][]float64{{14, 16, 30, 38}},
	)
	if err != nil {
		t.Fatal(err)
	}
	in := collections(seg)

	j := NewJoiner(DefaultConfig(), obs.DefaultRoles(), nil)
	out, reports, err := j.AttachSeries(context.Background(), in, &TableSeries{Label: "hcr", Table: echo}, 0)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := out[blocks.InCloudLevelFT][0].Table.Column(EchoTypeColumn)
	if !ok {
		t.Fatal("echo column missing")
	}
	want := []float64{math.NaN(), 14, 16, math.NaN(), 30}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("echo column (-want +got):\n%s", diff)
	}
	if in[blocks.InCloudLevelFT][0].Table.Has(EchoTypeColumn) {
		t.Error("input segment was modified")
	}
	if len(out) != len(blocks.Categories) {
		t.Errorf("categories = %d, want %d", len(out), len(blocks.Categories))
	}

	r := reports[0]
	if r.Rows != 5 || r.Matched != 3 || r.Missing != 2 || r.Failed != 0 {
		t.Errorf("report = %+v", r)
	}
}

// fakeField is a 2x2 grid at 0/1 degrees with two hourly times. Variable
// "t" returns 100*time+point; "bad" always fails.
type fakeField struct {
	calls map[string]int
}

func (f *fakeField) Name() string { return "era5" }

func (f *fakeField) Times() []time.Time { return []time.Time{t0, t0.Add(time.Hour)} }

func (f *fakeField) Points() ([]float64, []float64) {
	return []float64{0, 0, 1, 1}, []float64{0, 1, 0, 1}
}

func (f *fakeField) Variables() []string { return []string{"bad", "t"} }

func (f *fakeField) LongName(v string) string { return "long " + v }

func (f *fakeField) Value(v string, ti, pi int) (float64, error) {
	f.calls[v]++
	if v == "bad" {
		return 0, fmt.Errorf("%w: read %s", obs.ErrExternalLookup, v)
	}
	return float64(100*ti + pi), nil
}

func TestAttachFieldIsolatesFailures(t *testing.T) {
	seg := segmentTable(t, 5, 0.1, 0.9)
	src := &fakeField{calls: map[string]int{}}

	j := NewJoiner(DefaultConfig(), obs.DefaultRoles(), nil)
	out, reports, err := j.AttachField(context.Background(), collections(seg), src)
	if err != nil {
		t.Fatal(err)
	}
	tbl := out[blocks.InCloudLevelFT][0].Table

	good, _ := tbl.Column("era5_t")
	if diff := cmp.Diff([]float64{1, 1, 1, 1, 1}, good); diff != "" {
		t.Errorf("era5_t (-want +got):\n%s", diff)
	}
	bad, ok := tbl.Column("era5_bad")
	if !ok {
		t.Fatal("failed variable column dropped")
	}
	for i, v := range bad {
		if !math.IsNaN(v) {
			t.Errorf("era5_bad[%d] = %v, want NaN", i, v)
		}
	}
	if tbl.LongName("era5_t") != "long t" {
		t.Errorf("long name = %q", tbl.LongName("era5_t"))
	}

	if src.calls["t"] != 1 || src.calls["bad"] != 1 {
		t.Errorf("source calls = %v, want one per variable", src.calls)
	}
	if reports[0].Failed != 5 || !errors.Is(reports[0].FirstError, obs.ErrExternalLookup) {
		t.Errorf("bad report = %+v", reports[0])
	}
	if reports[1].Matched != 5 {
		t.Errorf("t report = %+v", reports[1])
	}
}

func TestAttachFieldOutOfReach(t *testing.T) {
	// Several hundred kilometres from the nearest grid point.
	seg := segmentTable(t, 3, 5, 5)
	j := NewJoiner(DefaultConfig(), obs.DefaultRoles(), nil)
	out, _, err := j.AttachField(context.Background(), collections(seg), &fakeField{calls: map[string]int{}})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := out[blocks.InCloudLevelFT][0].Table.Column("era5_t")
	for i, x := range v {
		if !math.IsNaN(x) {
			t.Errorf("row %d = %v, want NaN", i, x)
		}
	}
}

func TestAttachFieldMissingPosition(t *testing.T) {
	tbl, _ := obs.NewTable([]time.Time{sec(0)}, []string{"GGALT"}, [][]float64{{100}})
	j := NewJoiner(DefaultConfig(), obs.DefaultRoles(), nil)
	_, _, err := j.AttachField(context.Background(), collections(tbl), &fakeField{calls: map[string]int{}})
	if !errors.Is(err, obs.ErrMissingEssentialField) {
		t.Errorf("err = %v, want ErrMissingEssentialField", err)
	}
}

func TestDominantEchoType(t *testing.T) {
	tests := []struct {
		in     []float64
		want   int
		wantOK bool
	}{
		{[]float64{14, 14, math.NaN()}, EchoStratiformLow, true},
		{[]float64{30, 34}, EchoConvectiveElev, true},
		{[]float64{math.NaN()}, 0, false},
	}
	for _, tt := range tests {
		got, ok := DominantEchoType(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("DominantEchoType(%v) = %d, %v", tt.in, got, ok)
		}
	}
	if EchoTypeName(EchoConvectiveDeep) != "convective deep" || EchoTypeName(99) != "unknown" {
		t.Error("echo names wrong")
	}
}
