package history

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// BuildTrendReport turns runs (oldest first) into points carrying the delta
// to the previous run and the moving average of each metric over window.
func BuildTrendReport(projectKey string, runs []Run, window time.Duration) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs available")
	}

	names := metricNames(runs)
	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			Timestamp:   current.Timestamp,
			RunID:       current.ID,
			FileCount:   current.FileCount,
			ErrorCount:  current.ErrorCount,
			Metrics:     current.Metrics,
			Averages:    make(map[string]float64, len(names)),
			WindowHours: round2(window.Hours()),
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaFiles = current.FileCount - prev.FileCount
			point.Deltas = make(map[string]float64, len(names))
			for _, name := range names {
				point.Deltas[name] = round2(current.Metrics[name] - prev.Metrics[name])
			}
		}
		for _, name := range names {
			point.Averages[name] = round2(movingAverage(runs, i, window, name))
		}
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		ProjectKey:    normalizeKey(projectKey),
		Since:         runs[0].Timestamp,
		Until:         runs[len(runs)-1].Timestamp,
		Window:        window.String(),
		RunCount:      len(points),
		Metrics:       names,
		Points:        points,
	}, nil
}

func metricNames(runs []Run) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range runs {
		for name := range r.Metrics {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func movingAverage(runs []Run, index int, window time.Duration, name string) float64 {
	if window <= 0 {
		return runs[index].Metrics[name]
	}

	cutoff := runs[index].Timestamp.Add(-window)
	var total float64
	count := 0
	for i := index; i >= 0; i-- {
		if runs[i].Timestamp.Before(cutoff) {
			break
		}
		total += runs[i].Metrics[name]
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
