package obs

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewTableStableSort(t *testing.T) {
	base := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(2 * time.Second),
		base,
		base.Add(2 * time.Second),
		base.Add(time.Second),
	}
	tbl, err := NewTable(times, []string{"x"}, [][]float64{{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	x, _ := tbl.Column("x")
	if diff := cmp.Diff([]float64{2, 4, 1, 3}, x); diff != "" {
		t.Errorf("sorted column mismatch (-want +got):\n%s", diff)
	}
	if !tbl.Start().Equal(base) || !tbl.End().Equal(base.Add(2*time.Second)) {
		t.Errorf("bounds = %v..%v", tbl.Start(), tbl.End())
	}
}

func TestNewTableLengthMismatch(t *testing.T) {
	_, err := NewTable(make([]time.Time, 3), []string{"x"}, [][]float64{{1, 2}})
	if err == nil {
		t.Fatal("expected error for short column")
	}
}

func TestWithColumnDoesNotMutate(t *testing.T) {
	times := []time.Time{time.Unix(0, 0), time.Unix(1, 0)}
	tbl, err := NewTable(times, []string{"a"}, [][]float64{{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	next, err := tbl.WithColumn("b", []float64{3, 4}, "Second")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Has("b") {
		t.Error("original table gained column b")
	}
	if !next.Has("b") || next.LongName("b") != "Second" {
		t.Errorf("derived table missing b or long name: %q", next.LongName("b"))
	}
	if got := next.LongName("a"); got != "a" {
		t.Errorf("fallback long name = %q, want a", got)
	}
}

func TestSubsetPreservesOrder(t *testing.T) {
	times := []time.Time{time.Unix(0, 0), time.Unix(1, 0), time.Unix(2, 0)}
	tbl, _ := NewTable(times, []string{"a"}, [][]float64{{10, 11, 12}})
	sub := tbl.Subset([]int{0, 2})
	a, _ := sub.Column("a")
	if diff := cmp.Diff([]float64{10, 12}, a); diff != "" {
		t.Errorf("subset mismatch (-want +got):\n%s", diff)
	}
	if sub.Len() != 2 || !sub.Time(1).Equal(time.Unix(2, 0)) {
		t.Errorf("subset times wrong")
	}
}

func TestRequire(t *testing.T) {
	times := []time.Time{time.Unix(0, 0), time.Unix(1, 0), time.Unix(2, 0)}
	tbl, _ := NewTable(times, []string{"GGALT", "GGLAT", "GGLON", "PSXC"}, [][]float64{
		{1000, 1000, math.NaN()},
		{-55, math.NaN(), -55},
		{150, 150.5, 151},
		{900, math.Inf(1), 900},
	})
	roles := Roles{RoleAltitude: "GGALT", RoleLatitude: "GGLAT", RoleLongitude: "GGLON", RolePressure: "PSXC"}

	tests := []struct {
		name    string
		want    []Role
		wantErr bool
		wantRow string
	}{
		{"present", []Role{RoleLongitude}, false, ""},
		{"nan in last row", []Role{RoleAltitude}, true, "row 2"},
		{"nan in middle row", []Role{RoleLatitude}, true, "row 1"},
		{"inf", []Role{RolePressure}, true, "row 1"},
		{"first bad role reported", []Role{RoleLongitude, RoleLatitude, RoleAltitude}, true, "row 1"},
		{"unmapped", []Role{RoleTemperature}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tbl.Require(roles, tt.want...)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrMissingEssentialField) {
				t.Fatalf("err = %v, want ErrMissingEssentialField", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("err %v is not a FieldError", err)
			}
			if tt.wantRow != "" && !strings.Contains(err.Error(), tt.wantRow) {
				t.Errorf("err = %q, want it to name %s", err, tt.wantRow)
			}
		})
	}
}

func TestRequireEmptyTable(t *testing.T) {
	tbl, _ := NewTable(nil, []string{"GGALT"}, [][]float64{nil})
	if err := tbl.Require(Roles{RoleAltitude: "GGALT"}, RoleAltitude); err != nil {
		t.Errorf("empty column: %v", err)
	}
}

func TestFiniteRange(t *testing.T) {
	lo, hi, ok := FiniteRange([]float64{math.NaN(), 3, -1, math.Inf(1)})
	if !ok || lo != -1 || hi != 3 {
		t.Errorf("FiniteRange = %v %v %v", lo, hi, ok)
	}
	if _, _, ok := FiniteRange([]float64{math.NaN()}); ok {
		t.Error("FiniteRange of all-NaN should not be ok")
	}
}

func TestRolesMerge(t *testing.T) {
	r := DefaultRoles().Merge(Roles{RoleAltitude: "ALT", RolePressure: ""})
	if r.Column(RoleAltitude) != "ALT" {
		t.Errorf("altitude = %q", r.Column(RoleAltitude))
	}
	if r.Column(RolePressure) != "PSXC" {
		t.Errorf("empty override replaced pressure: %q", r.Column(RolePressure))
	}
}
