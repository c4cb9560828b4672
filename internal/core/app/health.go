package app

import (
	"context"
	"fmt"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"time"
)

const (
	StatusUp       = "up"
	StatusDegraded = "degraded"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// HealthService reports whether the pieces a long running watch session
// depends on are usable.
type HealthService struct {
	runner *Runner
}

func NewHealthService(runner *Runner) *HealthService {
	return &HealthService{runner: runner}
}

// LastResult returns the most recent completed run, or nil.
func (h *HealthService) LastResult() *Result {
	return h.runner.Last()
}

var healthProbeKey = cache.Key{Type: cache.TypeMetrics, ID: "healthz"}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     StatusUp,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	degrade := func(component, detail string) {
		status.Status = StatusDegraded
		status.Components[component] = detail
	}
	if err := ctx.Err(); err != nil {
		degrade("context", err.Error())
		return status
	}

	if s.runner.cache == nil {
		status.Components["cache"] = "disabled"
	} else if _, err := s.runner.cache.Restore(healthProbeKey, ""); err != nil && !cache.IsMiss(err) {
		degrade("cache", "error: "+err.Error())
	} else {
		status.Components["cache"] = "ok"
	}

	if s.runner.history == nil {
		status.Components["history"] = "disabled"
	} else if _, err := s.runner.history.LoadRuns(s.runner.projectKey, time.Now().UTC()); err != nil {
		degrade("history", "error: "+err.Error())
	} else {
		status.Components["history"] = "ok"
	}

	last := s.runner.Last()
	switch {
	case last == nil:
		status.Components["last_run"] = "none"
	case last.HasErrors():
		status.Components["last_run"] = fmt.Sprintf("ok (%d files, %d parse errors)", last.FileCount, len(last.Errors))
	default:
		status.Components["last_run"] = fmt.Sprintf("ok (%d files in %s)", last.FileCount, last.Duration.Round(time.Millisecond))
	}
	return status
}
