package report

import (
	"encoding/json"
	"github.com/tvbeek/pdepend/internal/data/history"
	"strconv"
	"strings"
	"time"
)

// RenderTrendTSV writes one row per run: timestamp, run id, file and error
// counts, then value, delta and moving average for every metric in the
// report.
func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	header := []string{"Timestamp", "Run", "Files", "Errors", "DeltaFiles", "WindowHours"}
	for _, name := range report.Metrics {
		header = append(header, name, "Delta_"+name, "Avg_"+name)
	}
	buf.WriteString(strings.Join(header, "\t") + "\n")

	for _, point := range report.Points {
		row := []string{
			point.Timestamp.Format(time.RFC3339),
			point.RunID,
			strconv.Itoa(point.FileCount),
			strconv.Itoa(point.ErrorCount),
			strconv.Itoa(point.DeltaFiles),
			strconv.FormatFloat(point.WindowHours, 'f', 2, 64),
		}
		for _, name := range report.Metrics {
			delta := ""
			if d, ok := point.Deltas[name]; ok {
				delta = formatValue(d)
			}
			row = append(row, formatValue(point.Metrics[name]), delta, formatValue(point.Averages[name]))
		}
		buf.WriteString(strings.Join(row, "\t") + "\n")
	}

	return []byte(buf.String()), nil
}

func RenderTrendJSON(report history.TrendReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
