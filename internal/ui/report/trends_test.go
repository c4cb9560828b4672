package report

import (
	"strings"
	"testing"
	"time"

	"github.com/tvbeek/pdepend/internal/data/history"
)

func TestRenderTrendTSV(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		Since:         time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
		Until:         time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		Window:        "24h0m0s",
		RunCount:      2,
		Metrics:       []string{"ccn", "loc"},
		Points: []history.TrendPoint{
			{
				Timestamp:   time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
				RunID:       "run-1",
				FileCount:   10,
				Metrics:     map[string]float64{"ccn": 12, "loc": 300},
				Averages:    map[string]float64{"ccn": 12, "loc": 300},
				WindowHours: 24,
			},
			{
				Timestamp:   time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
				RunID:       "run-2",
				FileCount:   11,
				ErrorCount:  1,
				Metrics:     map[string]float64{"ccn": 13, "loc": 320.5},
				Deltas:      map[string]float64{"ccn": 1, "loc": 20.5},
				Averages:    map[string]float64{"ccn": 12.5, "loc": 310.25},
				DeltaFiles:  1,
				WindowHours: 24,
			},
		},
	}

	out, err := RenderTrendTSV(report)
	if err != nil {
		t.Fatalf("render tsv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %d lines: %s", len(lines), out)
	}
	if lines[0] != "Timestamp\tRun\tFiles\tErrors\tDeltaFiles\tWindowHours\tccn\tDelta_ccn\tAvg_ccn\tloc\tDelta_loc\tAvg_loc" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "run-1\t10\t0\t0\t24.00\t12\t\t12\t300\t\t300") {
		t.Fatalf("first row should leave deltas empty: %q", lines[1])
	}
	if !strings.Contains(lines[2], "run-2\t11\t1\t1\t24.00\t13\t1\t12.5\t320.5\t20.5\t310.25") {
		t.Fatalf("missing row values in output: %q", lines[2])
	}
}

func TestRenderTrendJSON(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		ProjectKey:    "acme",
		RunCount:      2,
	}

	out, err := RenderTrendJSON(report)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	if !strings.Contains(string(out), "\"run_count\": 2") {
		t.Fatalf("missing run_count in json: %s", string(out))
	}
	if !strings.Contains(string(out), "\"project_key\": \"acme\"") {
		t.Fatalf("missing project_key in json: %s", string(out))
	}
}
