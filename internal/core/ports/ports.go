// Package ports holds the narrow interfaces the engine uses to reach its
// external collaborators.
package ports

import (
	"context"
	"github.com/tvbeek/pdepend/internal/data/history"
	"time"
)

// Source is one file handed to the analysis pipeline.
type Source struct {
	Path    string
	Content []byte
}

// SourceProvider yields the files of one run in a stable order.
type SourceProvider interface {
	Sources(ctx context.Context) ([]Source, error)
}

// StaticSources serves a fixed list of sources.
type StaticSources []Source

func (s StaticSources) Sources(ctx context.Context) ([]Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// HistoryStore abstracts run persistence for trend workflows.
type HistoryStore interface {
	SaveRun(projectKey string, run history.Run) error
	LoadRuns(projectKey string, since time.Time) ([]history.Run, error)
}
