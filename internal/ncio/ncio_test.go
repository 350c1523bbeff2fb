package ncio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chrissnell/inform/internal/blocks"
	"github.com/chrissnell/inform/internal/grid"
	"github.com/chrissnell/inform/internal/join"
	"github.com/chrissnell/inform/internal/obs"
)

type attr struct {
	name string
	val  interface{}
}

type ncVar struct {
	name  string
	dims  []string
	data  interface{}
	attrs []attr
}

func zeroOf(t *testing.T, data interface{}) interface{} {
	switch data.(type) {
	case []float64:
		return []float64{0}
	case []float32:
		return []float32{0}
	case []int32:
		return []int32{0}
	case []int16:
		return []int16{0}
	}
	t.Fatalf("unsupported test data %T", data)
	return nil
}

func writeNC(t *testing.T, name string, dims []string, lengths []int, vars []ncVar) string {
	t.Helper()
	h := cdf.NewHeader(dims, lengths)
	for _, v := range vars {
		h.AddVariable(v.name, v.dims, zeroOf(t, v.data))
		for _, a := range v.attrs {
			h.AddAttribute(v.name, a.name, a.val)
		}
	}
	h.Define()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vars {
		end := nc.Header.Lengths(v.name)
		if _, err := nc.Writer(v.name, make([]int, len(end)), end).Write(v.data); err != nil {
			t.Fatalf("write %s: %v", v.name, err)
		}
	}
	return path
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units, calendar string
		in              float64
		want            time.Time
	}{
		{"seconds since 2018-01-15 22:00:00 +0000", "", 90, time.Date(2018, 1, 15, 22, 1, 30, 0, time.UTC)},
		{"hours since 1900-01-01 00:00:00.0", "gregorian", 24, time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"days since 2018-02-01", "", 0.5, time.Date(2018, 2, 1, 12, 0, 0, 0, time.UTC)},
		{"minutes since 2018-02-01T06:00:00Z", "", 1.0001, time.Date(2018, 2, 1, 6, 1, 0, 0, time.UTC)},
		// No Feb 29 in a 365-day calendar.
		{"days since 2000-01-01 00:00:00", "noleap", 59, time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2000-12-31 00:00:00", "365_day", 1, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tu, err := ParseTimeUnits(tt.units, tt.calendar)
		if err != nil {
			t.Errorf("ParseTimeUnits(%q): %v", tt.units, err)
			continue
		}
		if got := tu.Decode([]float64{tt.in})[0]; !got.Equal(tt.want) {
			t.Errorf("%q + %v = %v, want %v", tt.units, tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"seconds", "fortnights since 2000-01-01", "days since yesterday"} {
		if _, err := ParseTimeUnits(bad, ""); err == nil {
			t.Errorf("ParseTimeUnits(%q) succeeded", bad)
		}
	}
	if _, err := ParseTimeUnits("days since 2000-01-01", "360_day"); err == nil {
		t.Error("360_day calendar accepted")
	}
}

func TestReadObservations(t *testing.T) {
	path := writeNC(t, "RF01.nc", []string{"Time", "sps2"}, []int{5, 2}, []ncVar{
		{"Time", []string{"Time"}, []float64{0, 1, 2, 3, 4},
			[]attr{{"units", "seconds since 2018-01-15 22:00:00 +0000"}}},
		{"GGLAT", []string{"Time"}, []float64{-60, -60, -60, -60, -60}, []attr{{"long_name", "Reference GPS Latitude"}}},
		{"GGLON", []string{"Time"}, []float64{140, 140, 140, 140, 140}, nil},
		{"GGALT", []string{"Time"}, []float64{100, 110, 120, 130, 140}, nil},
		{"ATX", []string{"Time"}, []float32{-10, -32767, -11, -12, -13},
			[]attr{{"_FillValue", []float32{-32767}}, {"long_name", "Ambient Temperature, Reference"}}},
		{"WIC", []string{"Time", "sps2"}, []float64{1, 3, 2, 2, 5, 7, -1, 1, 0, 0}, nil},
	})

	tbl, err := ReadObservations(path, "", obs.DefaultRoles(), []string{"WIC", "NOPE"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 5 || !tbl.Start().Equal(time.Date(2018, 1, 15, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("rows = %d, start = %v", tbl.Len(), tbl.Start())
	}
	if diff := cmp.Diff([]string{"GGLAT", "GGLON", "GGALT", "ATX", "WIC"}, tbl.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	atx, _ := tbl.Column("ATX")
	if diff := cmp.Diff([]float64{-10, math.NaN(), -11, -12, -13}, atx, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("ATX (-want +got):\n%s", diff)
	}
	wic, _ := tbl.Column("WIC")
	if diff := cmp.Diff([]float64{2, 2, 6, 0, 0}, wic); diff != "" {
		t.Errorf("WIC (-want +got):\n%s", diff)
	}
	if tbl.LongName("ATX") != "Ambient Temperature, Reference" {
		t.Errorf("long name = %q", tbl.LongName("ATX"))
	}

	_, err = ReadObservations(path, "time", obs.DefaultRoles(), nil, nil)
	if !errors.Is(err, obs.ErrMissingEssentialField) {
		t.Errorf("missing time variable: err = %v", err)
	}
}

func TestModelGrid(t *testing.T) {
	ps := make([]float32, 2*3*4)
	for ti := 0; ti < 2; ti++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 4; i++ {
				ps[ti*12+j*4+i] = float32(100000 + 1000*ti + 10*j + i)
			}
		}
	}
	path := writeNC(t, "cesm.nc", []string{"time", "lat", "lon", "ilev", "one"}, []int{2, 3, 4, 5, 1}, []ncVar{
		{"time", []string{"time"}, []float64{0, 0.25},
			[]attr{{"units", "days since 2018-01-15 00:00:00"}, {"calendar", "noleap"}}},
		{"lat", []string{"lat"}, []float64{-60, -59, -58}, nil},
		{"lon", []string{"lon"}, []float64{140, 141, 142, 143}, nil},
		{"hyai", []string{"ilev"}, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, nil},
		{"hybi", []string{"ilev"}, []float64{0, 0.1, 0.2, 0.3, 0.4}, nil},
		{"P0", []string{"one"}, []float64{100000}, nil},
		{"PS", []string{"time", "lat", "lon"}, ps, nil},
	})

	mf, err := OpenModel(path, DefaultModelNames())
	if err != nil {
		t.Fatal(err)
	}
	defer mf.Close()

	if got := mf.Times()[1]; !got.Equal(time.Date(2018, 1, 15, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("time[1] = %v", got)
	}
	m, err := mf.Grid(1)
	if err != nil {
		t.Fatal(err)
	}
	if m.P0 != 100000 || m.Levels() != 5 {
		t.Errorf("P0 = %v, levels = %d", m.P0, m.Levels())
	}
	if m.PS[2][3] != 101023 || m.PS[0][0] != 101000 {
		t.Errorf("PS corners = %v, %v", m.PS[0][0], m.PS[2][3])
	}

	names := DefaultModelNames()
	names.A = "hyam"
	if _, err := OpenModel(path, names); !errors.Is(err, grid.ErrInvalidModel) {
		t.Errorf("missing hyam: err = %v", err)
	}
}

func TestReanalysisSource(t *testing.T) {
	t2m := []int16{0, 1, 2, 3, 4, 5, 6, -32767, 8, 9, 10, 11}
	path := writeNC(t, "era5.nc", []string{"time", "latitude", "longitude"}, []int{2, 2, 3}, []ncVar{
		{"time", []string{"time"}, []int32{1037000, 1037001},
			[]attr{{"units", "hours since 1900-01-01 00:00:00.0"}, {"calendar", "gregorian"}}},
		{"latitude", []string{"latitude"}, []float32{-59, -60}, nil},
		{"longitude", []string{"longitude"}, []float32{140, 140.25, 140.5}, nil},
		{"t2m", []string{"time", "latitude", "longitude"}, t2m, []attr{
			{"scale_factor", []float64{0.5}},
			{"add_offset", []float64{200}},
			{"_FillValue", []int16{-32767}},
			{"long_name", "2 metre temperature"},
		}},
	})

	r, err := OpenReanalysis(path, "era5", DefaultReanalysisNames(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var _ join.FieldSource = r
	if diff := cmp.Diff([]string{"t2m"}, r.Variables()); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
	want := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC).Add(1037001 * time.Hour)
	if !r.Times()[1].Equal(want) {
		t.Errorf("time[1] = %v, want %v", r.Times()[1], want)
	}
	lat, lon := r.Points()
	if len(lat) != 6 || lat[3] != -60 || lon[3] != 140 {
		t.Errorf("points = %v %v", lat, lon)
	}

	tests := []struct {
		ti, pi int
		want   float64
	}{
		{0, 0, 200},
		{1, 2, 204},
		{1, 1, math.NaN()},
	}
	for _, tt := range tests {
		got, err := r.Value("t2m", tt.ti, tt.pi)
		if err != nil {
			t.Fatal(err)
		}
		if !(got == tt.want || math.IsNaN(got) && math.IsNaN(tt.want)) {
			t.Errorf("t2m[%d][%d] = %v, want %v", tt.ti, tt.pi, got, tt.want)
		}
	}
	if _, err := r.Value("t2m", 0, 99); !errors.Is(err, obs.ErrExternalLookup) {
		t.Errorf("out-of-range point: err = %v", err)
	}
	if r.LongName("t2m") != "2 metre temperature" {
		t.Errorf("long name = %q", r.LongName("t2m"))
	}
}

func TestReadEchoTypes(t *testing.T) {
	hcr := func(name string, secs []float64, echo []float32) string {
		return writeNC(t, name, []string{"time"}, []int{len(secs)}, []ncVar{
			{"time", []string{"time"}, secs, []attr{{"units", "seconds since 2018-01-15 22:00:00"}}},
			{"HCR_ECHO_TYPE_1D", []string{"time"}, echo, nil},
		})
	}
	a := hcr("a.nc", []float64{2, 3}, []float32{14, 16})
	b := hcr("b.nc", []float64{0, 1}, []float32{30, 38})

	tbl, err := ReadEchoTypes([]string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tbl.Column(join.EchoTypeColumn)
	if diff := cmp.Diff([]float64{30, 38, 14, 16}, got); diff != "" {
		t.Errorf("echo types (-want +got):\n%s", diff)
	}
}

func TestReadSpectra(t *testing.T) {
	path := writeNC(t, "RF02.nc", []string{"Time", "sps1", "Vector4"}, []int{3, 1, 4}, []ncVar{
		{"Time", []string{"Time"}, []float64{0, 1, 2}, []attr{{"units", "seconds since 2018-01-15 22:00:00"}}},
		{"C2DCA_LPO", []string{"Time", "sps1", "Vector4"}, []float32{9, 1, 2, 3, 9, 4, 5, 6, 9, 7, 8, 9}, []attr{
			{"CellSizes", []float32{25, 100, 300, 1200}},
			{"FirstBin", []int32{1}},
			{"LastBin", []int32{3}},
		}},
		{"CUHSAS_LWII", []string{"Time", "Vector4"}, make([]float32, 12), nil},
	})

	spectra, err := ReadSpectra(path, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := spectra["UHSAS"]; ok {
		t.Error("UHSAS without CellSizes was read")
	}
	s, ok := spectra["2DC"]
	if !ok {
		t.Fatal("2DC spectrum missing")
	}
	if diff := cmp.Diff([]float64{100, 300, 1200}, s.Edges); diff != "" {
		t.Errorf("edges (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{3, 9, 15}, s.Sum(100, 500)); diff != "" {
		t.Errorf("drizzle (-want +got):\n%s", diff)
	}
}

func TestWriteProduct(t *testing.T) {
	t1 := time.Date(2018, 1, 15, 22, 0, 2, 0, time.UTC)
	cells := &grid.PopulatedCells{
		Time:      []time.Time{t1, t1.Add(90 * time.Second)},
		Latitude:  []float64{-60, -59.5},
		Longitude: []float64{140, 140.5},
		Altitude:  []float64{850, 700},
		Variables: []string{"ATX", "PSXC"},
		Values: map[string][]float64{
			"ATX":  {-10.5, -20},
			"PSXC": {850, 700},
		},
		LongNames: map[string]string{"ATX": "Ambient Temperature, Reference"},
	}
	path := filepath.Join(t.TempDir(), "grid.nc")
	if err := WriteProduct(path, cells, map[string]string{"title": "RF01 vs CESM"}); err != nil {
		t.Fatal(err)
	}

	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	times, err := d.Times("time")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cells.Time, times); diff != "" {
		t.Errorf("times (-want +got):\n%s", diff)
	}
	atx, err := d.Float64s("ATX")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cells.Values["ATX"], atx); diff != "" {
		t.Errorf("ATX (-want +got):\n%s", diff)
	}
	if got := d.StringAttr("ATX", "long_name"); got != "Ambient Temperature, Reference" {
		t.Errorf("ATX long_name = %q", got)
	}
	if got := d.StringAttr("PSXC", "long_name"); got != "PSXC" {
		t.Errorf("PSXC long_name = %q", got)
	}
	if got := d.StringAttr("", "title"); got != "RF01 vs CESM" {
		t.Errorf("title = %q", got)
	}

	if err := WriteProduct(path, &grid.PopulatedCells{}, nil); err == nil {
		t.Error("empty product written")
	}
}

func segment(t *testing.T, id int, start time.Time, n int, cols map[string]float64) blocks.Segment {
	t.Helper()
	times := make([]time.Time, n)
	var names []string
	var data [][]float64
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Second)
	}
	for _, name := range []string{"GGALT", "ATX"} {
		v, ok := cols[name]
		if !ok {
			continue
		}
		col := make([]float64, n)
		for i := range col {
			col[i] = v + float64(i)
		}
		names = append(names, name)
		data = append(data, col)
	}
	tbl, err := obs.NewTable(times, names, data)
	if err != nil {
		t.Fatal(err)
	}
	return blocks.Segment{BlockID: id, Table: tbl.WithLongNames(map[string]string{"ATX": "Ambient Temperature"})}
}

func TestSegmentsRoundTrip(t *testing.T) {
	t1 := time.Date(2018, 1, 15, 22, 0, 0, 0, time.UTC)
	segs := blocks.Collections{
		blocks.LevelBL: {
			segment(t, 3, t1, 3, map[string]float64{"GGALT": 150, "ATX": 5}),
			segment(t, 5, t1.Add(time.Hour), 2, map[string]float64{"GGALT": 160, "ATX": 4}),
		},
		blocks.OutOfCloudLevelFT: {
			segment(t, 8, t1.Add(2*time.Hour), 2, map[string]float64{"GGALT": 3000}),
		},
	}
	path := filepath.Join(t.TempDir(), "RF01.segments.nc")
	if err := WriteSegments(path, segs, map[string]string{"source_flight": "RF01.nc"}); err != nil {
		t.Fatal(err)
	}

	got, err := ReadCloudRegimes([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	type summary struct {
		Flight, Label string
		Code, Index   int
		Rows          int
	}
	var sums []summary
	for _, b := range got {
		sums = append(sums, summary{b.Flight, b.Label, b.Code, b.Index, b.Table.Len()})
	}
	want := []summary{
		{"RF01", "Level BL", 0, 3, 3},
		{"RF01", "Level BL", 0, 5, 2},
		{"RF01", "Out-of-cloud Level FT", 3, 8, 2},
	}
	if diff := cmp.Diff(want, sums); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}

	alt, _ := got[1].Table.Column("GGALT")
	if diff := cmp.Diff([]float64{160, 161}, alt); diff != "" {
		t.Errorf("GGALT (-want +got):\n%s", diff)
	}
	atx, _ := got[2].Table.Column("ATX")
	if diff := cmp.Diff([]float64{math.NaN(), math.NaN()}, atx, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("missing ATX (-want +got):\n%s", diff)
	}
	if !got[2].Table.Start().Equal(t1.Add(2 * time.Hour)) {
		t.Errorf("start = %v", got[2].Table.Start())
	}
	if ln := got[0].Table.LongName("ATX"); ln != "Ambient Temperature" {
		t.Errorf("long name = %q", ln)
	}

	tbl, err := RegimeTable(got)
	if err != nil {
		t.Fatal(err)
	}
	codes, _ := tbl.Column(RegimeColumn)
	ids, _ := tbl.Column(RegimeIndexColumn)
	if diff := cmp.Diff([]float64{0, 0, 0, 0, 0, 3, 3}, codes); diff != "" {
		t.Errorf("codes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{3, 3, 3, 5, 5, 8, 8}, ids); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if ln := tbl.LongName(RegimeColumn); ln != "cloud regime (0=Level BL, 3=Out-of-cloud Level FT)" {
		t.Errorf("long name = %q", ln)
	}
}

func TestSegmentsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.nc")
	if err := WriteSegments(path, blocks.Collections{}, nil); !errors.Is(err, ErrNoSegments) {
		t.Errorf("write: err = %v, want ErrNoSegments", err)
	}
	if _, err := RegimeTable(nil); !errors.Is(err, ErrNoSegments) {
		t.Errorf("table: err = %v, want ErrNoSegments", err)
	}
}
