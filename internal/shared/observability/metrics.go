package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdepend_parsing_seconds",
		Help:    "Time spent tokenizing and parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdepend_files_processed_total",
		Help: "Total number of source files processed, by outcome.",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdepend_analysis_seconds",
		Help:    "Time spent running one metrics analyzer over all namespaces.",
		Buckets: prometheus.DefBuckets,
	}, []string{"analyzer"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdepend_cache_lookups_total",
		Help: "Total number of cache lookups, by artifact type and result.",
	}, []string{"type", "result"})

	ProjectNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pdepend_project_nodes",
		Help: "Number of declarations found by the last run.",
	}, []string{"kind"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdepend_runs_total",
		Help: "Total number of analysis runs, by outcome.",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdepend_run_seconds",
		Help:    "Wall time of a full analysis run.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdepend_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatcherRunsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdepend_watcher_runs_throttled_total",
		Help: "Total number of watch-triggered runs delayed by the rate limiter.",
	})
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)
