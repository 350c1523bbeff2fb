package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chrissnell/inform/internal/app"
)

func TestFileList(t *testing.T) {
	var f fileList
	for _, v := range []string{"a.csv, b.csv", "", "c.csv"} {
		if err := f.Set(v); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(fileList{"a.csv", "b.csv", "c.csv"}, f); diff != "" {
		t.Errorf("fileList (-want +got):\n%s", diff)
	}
	if f.String() != "a.csv,b.csv,c.csv" {
		t.Errorf("String() = %q", f.String())
	}
}

func TestRunErrors(t *testing.T) {
	t.Setenv("INFORM_SQLITE_PATH", "")
	t.Setenv("INFORM_TIMESCALEDB_DSN", "")
	dir := t.TempDir()

	if err := run("", false, app.Inputs{}); !errors.Is(err, errNoFlight) {
		t.Errorf("no flight: err = %v, want errNoFlight", err)
	}
	if err := run("", false, app.Inputs{Flight: filepath.Join(dir, "missing.nc")}); err == nil {
		t.Error("expected an error for a missing flight file")
	}
	if err := run(filepath.Join(dir, "missing.yaml"), false, app.Inputs{}); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
