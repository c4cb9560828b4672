package history

import "time"

// Run is the persisted outcome of one analysis run: the project metrics
// merged across analyzers plus the counters the runner reports.
type Run struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Duration    time.Duration      `json:"duration"`
	FileCount   int                `json:"file_count"`
	CachedCount int                `json:"cached_count"`
	ErrorCount  int                `json:"error_count"`
	Metrics     map[string]float64 `json:"metrics"`
}

// TrendPoint is one run in a trend report. Deltas are relative to the
// previous run and absent on the first point.
type TrendPoint struct {
	Timestamp   time.Time          `json:"timestamp"`
	RunID       string             `json:"run_id"`
	FileCount   int                `json:"file_count"`
	ErrorCount  int                `json:"error_count"`
	Metrics     map[string]float64 `json:"metrics"`
	Deltas      map[string]float64 `json:"deltas,omitempty"`
	Averages    map[string]float64 `json:"averages"`
	DeltaFiles  int                `json:"delta_files"`
	WindowHours float64            `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	ProjectKey    string       `json:"project_key"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	RunCount      int          `json:"run_count"`
	Metrics       []string     `json:"metrics"`
	Points        []TrendPoint `json:"points"`
}
