package blocks

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chrissnell/inform/internal/obs"
	"github.com/chrissnell/inform/internal/regime"
)

type span struct {
	ft  regime.FlightType
	cs  regime.CloudStatus
	loc regime.Location
	n   int
	alt func(i int) float64
}

func flat(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

// ramp spreads total metres evenly over n rows.
func ramp(base, total float64, n int) func(int) float64 {
	return func(i int) float64 { return base + total*float64(i)/float64(n-1) }
}

func build(t *testing.T, spans []span) *regime.Result {
	t.Helper()
	base := time.Date(2023, 2, 3, 15, 0, 0, 0, time.UTC)
	var times []time.Time
	var alt []float64
	var labels []regime.Label
	row := 0
	for id, s := range spans {
		for i := 0; i < s.n; i++ {
			times = append(times, base.Add(time.Duration(row)*time.Second))
			alt = append(alt, s.alt(i))
			labels = append(labels, regime.Label{FlightType: s.ft, CloudStatus: s.cs, Location: s.loc, BlockID: id + 1})
			row++
		}
	}
	tbl, err := obs.NewTable(times, []string{"GGALT"}, [][]float64{alt})
	if err != nil {
		t.Fatal(err)
	}
	return &regime.Result{Table: tbl, Labels: labels}
}

var (
	levelBL   = span{regime.Level, regime.OutOfCloud, regime.BoundaryLayer, 20, flat(300)}
	climb     = span{regime.Profile, regime.OutOfCloud, regime.BoundaryLayer, 10, ramp(300, 100, 10)}
	cloudyLeg = span{regime.Level, regime.InCloud, regime.Free, 1, flat(2000)}
)

func blockIDs(segs []Segment) []int {
	ids := []int{}
	for _, s := range segs {
		ids = append(ids, s.BlockID)
	}
	return ids
}

func TestLevelBLTrimsTakeoffAndLanding(t *testing.T) {
	tests := []struct {
		name  string
		spans []span
		want  []int
	}{
		{"two legs", []span{levelBL, climb, levelBL}, []int{}},
		{"three legs", []span{levelBL, climb, levelBL, climb, levelBL}, []int{3}},
		{"four legs", []span{levelBL, climb, levelBL, climb, levelBL, climb, levelBL}, []int{3, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(build(t, tt.spans), obs.DefaultRoles(), DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, blockIDs(got[LevelBL])); diff != "" {
				t.Errorf("Level BL ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInCloudProfileExcursion(t *testing.T) {
	profile := func(excursion float64) span {
		return span{regime.Profile, regime.InCloud, regime.Free, 11, ramp(1000, excursion, 11)}
	}
	tests := []struct {
		excursion float64
		want      int
	}{
		{30, 0},
		{30.01, 1},
	}
	for _, tt := range tests {
		res := build(t, []span{levelBL, profile(tt.excursion), levelBL})
		got, err := Extract(res, obs.DefaultRoles(), DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if n := len(got[InCloudProfiles]); n != tt.want {
			t.Errorf("excursion %v: got %d profiles, want %d", tt.excursion, n, tt.want)
		}
	}
}

func TestOutOfCloudLevelFTDuration(t *testing.T) {
	leg := func(rows int) span {
		return span{regime.Level, regime.OutOfCloud, regime.Free, rows, flat(3000)}
	}
	tests := []struct {
		name string
		rows int
		want int
	}{
		{"exactly 180 s", 181, 0},
		{"181 s", 182, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(build(t, []span{climb, leg(tt.rows), climb}), obs.DefaultRoles(), DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			if n := len(got[OutOfCloudLevelFT]); n != tt.want {
				t.Errorf("got %d legs, want %d", n, tt.want)
			}
		})
	}
}

func TestInCloudLevelFTHasNoDurationFilter(t *testing.T) {
	got, err := Extract(build(t, []span{climb, cloudyLeg, climb}), obs.DefaultRoles(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	segs := got[InCloudLevelFT]
	if len(segs) != 1 || segs[0].Table.Len() != 1 {
		t.Fatalf("In-Cloud Level FT = %+v", segs)
	}
	if segs[0].Duration() != 0 {
		t.Errorf("single-row duration = %v", segs[0].Duration())
	}
}

func TestSegmentsPreserveRowOrder(t *testing.T) {
	res := build(t, []span{levelBL, climb, levelBL, {regime.Level, regime.OutOfCloud, regime.BoundaryLayer, 5, ramp(310, 4, 5)}, levelBL})
	got, err := Extract(res, obs.DefaultRoles(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	segs := got[LevelBL]
	if len(segs) != 2 {
		t.Fatalf("got %d Level BL segments, want 2", len(segs))
	}
	alt, _ := segs[1].Table.Column("GGALT")
	if diff := cmp.Diff([]float64{310, 311, 312, 313, 314}, alt); diff != "" {
		t.Errorf("segment rows (-want +got):\n%s", diff)
	}
	if !segs[1].Start().Before(segs[1].End()) {
		t.Errorf("segment times out of order")
	}
	if res.Table.Len() != 75 {
		t.Errorf("input table modified: %d rows", res.Table.Len())
	}
}

func TestExtractAllCategoriesPresent(t *testing.T) {
	got, err := Extract(build(t, []span{climb}), obs.DefaultRoles(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range Categories {
		segs, ok := got[c]
		if !ok || segs == nil {
			t.Errorf("category %q missing", c)
		}
	}
	if got.Count() != 0 {
		t.Errorf("Count = %d, want 0", got.Count())
	}
}

func TestExtractMissingAltitude(t *testing.T) {
	res := build(t, []span{climb})
	roles := obs.Roles{obs.RoleAltitude: "HGM232"}
	if _, err := Extract(res, roles, DefaultConfig()); !errors.Is(err, obs.ErrMissingEssentialField) {
		t.Errorf("err = %v, want ErrMissingEssentialField", err)
	}
}
