package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_OpenInitializesSchemaAndSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first := Run{Timestamp: base, FileCount: 8, Metrics: map[string]float64{"ccn": 12, "npath": 40}}
	dup := Run{Timestamp: base, FileCount: 11, Metrics: map[string]float64{"ccn": 15}}
	second := Run{Timestamp: base.Add(2 * time.Hour), FileCount: 9, ErrorCount: 1, Metrics: map[string]float64{"ccn": 10, "ahh": 1.5}}

	for _, r := range []Run{first, dup, second} {
		if err := store.SaveRun("project-a", r); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	got, err := store.LoadRuns("project-a", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 run after since filter, got %d", len(got))
	}
	if got[0].FileCount != 9 || got[0].ErrorCount != 1 {
		t.Fatalf("unexpected run: %+v", got[0])
	}
	if got[0].Metrics["ahh"] != 1.5 || len(got[0].Metrics) != 2 {
		t.Fatalf("expected metrics to roundtrip, got %+v", got[0].Metrics)
	}
	if got[0].ID == "" {
		t.Fatal("expected generated run id")
	}

	// Same timestamp upserts, and the old metric set is replaced.
	all, err := store.LoadRuns("project-a", time.Time{})
	if err != nil {
		t.Fatalf("load all runs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected deduplicated 2 runs, got %d", len(all))
	}
	if all[0].FileCount != 11 || all[0].Metrics["ccn"] != 15 {
		t.Fatalf("expected upserted run, got %+v", all[0])
	}
	if _, ok := all[0].Metrics["npath"]; ok {
		t.Fatalf("expected stale metric to be dropped, got %+v", all[0].Metrics)
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
	if !IsCorruptError(err) {
		t.Fatalf("expected %v to be classified as corrupt", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, SchemaVersion+1)); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTrendReport(t *testing.T) {
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{Timestamp: base, FileCount: 5, Metrics: map[string]float64{"ccn": 10, "npath": 20}},
		{Timestamp: base.Add(2 * time.Hour), FileCount: 8, Metrics: map[string]float64{"ccn": 14, "npath": 30}},
		{Timestamp: base.Add(25 * time.Hour), FileCount: 9, Metrics: map[string]float64{"ccn": 11}},
	}

	report, err := BuildTrendReport("", runs, 24*time.Hour)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.RunCount != 3 || report.ProjectKey != "default" {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if len(report.Metrics) != 2 || report.Metrics[0] != "ccn" {
		t.Fatalf("expected sorted metric names, got %v", report.Metrics)
	}
	if report.Points[0].Deltas != nil {
		t.Fatalf("first point must not carry deltas, got %v", report.Points[0].Deltas)
	}
	if report.Points[1].Deltas["ccn"] != 4 || report.Points[1].DeltaFiles != 3 {
		t.Fatalf("unexpected deltas: %+v", report.Points[1])
	}
	if report.Points[2].Deltas["npath"] != -30 {
		t.Fatalf("expected missing metric to count as zero, got %v", report.Points[2].Deltas["npath"])
	}
	if report.Points[1].Averages["ccn"] != 12 {
		t.Fatalf("expected moving average 12, got %v", report.Points[1].Averages["ccn"])
	}
	// base is 25h before the third run and falls out of the window.
	if report.Points[2].Averages["ccn"] != 12.5 {
		t.Fatalf("expected windowed average 12.5, got %v", report.Points[2].Averages["ccn"])
	}
}

func TestBuildTrendReport_NoRuns(t *testing.T) {
	if _, err := BuildTrendReport("p", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty run list")
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
}

func TestStore_SaveLoadRuns_ProjectIsolation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	if err := store.SaveRun("project-a", Run{Timestamp: base, FileCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRun("project-b", Run{Timestamp: base, FileCount: 2, Metrics: map[string]float64{"noc": 3}}); err != nil {
		t.Fatal(err)
	}

	aRows, err := store.LoadRuns("project-a", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(aRows) != 1 || aRows[0].FileCount != 1 || len(aRows[0].Metrics) != 0 {
		t.Fatalf("unexpected project-a rows: %+v", aRows)
	}

	bRows, err := store.LoadRuns("project-b", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bRows) != 1 || bRows[0].Metrics["noc"] != 3 {
		t.Fatalf("unexpected project-b rows: %+v", bRows)
	}

	projects, err := store.Projects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 2 || projects[0] != "project-a" {
		t.Fatalf("unexpected projects: %v", projects)
	}
}

func TestStore_RoundtripsRunCounters(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "b", Timestamp: base.Add(500 * time.Millisecond), FileCount: 4, CachedCount: 3, Duration: 1500 * time.Millisecond},
		{ID: "a", Timestamp: base, FileCount: 4},
	}
	for _, r := range runs {
		if err := store.SaveRun("p", r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.LoadRuns("p", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected chronological order, got %+v", got)
	}
	if got[1].CachedCount != 3 || got[1].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected counters: %+v", got[1])
	}
	if !got[1].Timestamp.Equal(runs[0].Timestamp) {
		t.Fatalf("expected timestamp %s, got %s", runs[0].Timestamp, got[1].Timestamp)
	}
}
