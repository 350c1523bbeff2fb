package database

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/chrissnell/inform/internal/storage"
)

func TestModelConversions(t *testing.T) {
	id := uuid.New()
	t0 := time.Date(2018, 2, 20, 23, 0, 0, 0, time.UTC)

	run := storage.Run{
		ID: id, CreatedAt: t0, Flight: "RF07", Start: t0, End: t0.Add(time.Hour),
		Rows: 3600, Segments: 4, Cells: 12, MinInCloudAltitude: 850,
		Warnings: []string{"size distribution unavailable"},
	}
	rm, err := NewRunModel(run)
	if err != nil {
		t.Fatal(err)
	}
	gotRun, err := rm.Run()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(run, gotRun); diff != "" {
		t.Errorf("run (-want +got):\n%s", diff)
	}

	block := storage.BlockRecord{
		RunID: id, Kind: storage.KindSegment, Seq: 2, Label: "In-Cloud Profiles",
		Start: t0, End: t0.Add(5 * time.Minute), Lower: 300, Upper: 1400,
		Location: "BL", BlockID: 9, Rows: 300,
	}
	if diff := cmp.Diff(block, NewBlockModel(block).Record()); diff != "" {
		t.Errorf("block (-want +got):\n%s", diff)
	}

	cell := storage.CellRecord{
		RunID: id, Seq: 1, Time: t0, Latitude: -55, Longitude: 140, Altitude: 1200,
		Values: map[string]float64{"ATX": -3.5, "ERA5_t2m": math.NaN()},
	}
	cm, err := NewCellModel(cell)
	if err != nil {
		t.Fatal(err)
	}
	gotCell, err := cm.Record()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cell, gotCell, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("cell (-want +got):\n%s", diff)
	}
}

func TestTableNames(t *testing.T) {
	for _, tt := range []struct {
		got, want string
	}{
		{RunModel{}.TableName(), "inform_runs"},
		{BlockModel{}.TableName(), "inform_blocks"},
		{CellModel{}.TableName(), "inform_cells"},
	} {
		if tt.got != tt.want {
			t.Errorf("table = %q, want %q", tt.got, tt.want)
		}
	}
}
