// Package history persists the project metrics of every analysis run in a
// sqlite database so later runs can report trends.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	defaultKey  = "default"
	// Fixed width so that started_utc sorts chronologically as text.
	timestampForm = "2006-01-02T15:04:05.000000000Z"
)

// Store is safe for concurrent use; watch mode saves runs while the
// health probe reads them.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", path, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema %q: %w", path, err)
	}
	return &Store{path: path, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun stores run under projectKey. A second run with the same timestamp
// replaces the first one, metrics included.
func (s *Store) SaveRun(projectKey string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = normalizeKey(projectKey)
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	ts := run.Timestamp.UTC().Format(timestampForm)

	return s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		// Deleting the run cascades to its metrics.
		if _, err := tx.Exec(`DELETE FROM analysis_runs WHERE project = ? AND started_utc = ?`, projectKey, ts); err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO analysis_runs (project, started_utc, run_id, file_count, cached_count, error_count, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectKey, ts, run.ID, run.FileCount, run.CachedCount, run.ErrorCount, run.Duration.Milliseconds(),
		); err != nil {
			return err
		}
		if len(run.Metrics) > 0 {
			stmt, err := tx.Prepare(`INSERT INTO project_metrics (project, started_utc, metric, value) VALUES (?, ?, ?, ?)`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for name, value := range run.Metrics {
				if _, err := stmt.Exec(projectKey, ts, name, value); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

// LoadRuns returns the runs of projectKey at or after since, oldest first.
// A zero since loads everything.
func (s *Store) LoadRuns(projectKey string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT r.started_utc, r.run_id, r.file_count, r.cached_count, r.error_count, r.duration_ms, m.metric, m.value
FROM analysis_runs r
LEFT JOIN project_metrics m ON m.project = r.project AND m.started_utc = r.started_utc
WHERE r.project = ?`
	args := []any{normalizeKey(projectKey)}
	if !since.IsZero() {
		query += ` AND r.started_utc >= ?`
		args = append(args, since.UTC().Format(timestampForm))
	}
	query += ` ORDER BY r.started_utc`

	var runs []Run
	err := s.withRetry("load runs", func() error {
		runs = nil
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				tsRaw      string
				run        Run
				durationMS int64
				metric     sql.NullString
				value      sql.NullFloat64
			)
			if err := rows.Scan(&tsRaw, &run.ID, &run.FileCount, &run.CachedCount, &run.ErrorCount, &durationMS, &metric, &value); err != nil {
				return fmt.Errorf("scan run row: %w", err)
			}
			ts, err := time.Parse(timestampForm, tsRaw)
			if err != nil {
				return fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
			}
			if n := len(runs); n == 0 || !runs[n-1].Timestamp.Equal(ts) {
				run.Timestamp = ts.UTC()
				run.Duration = time.Duration(durationMS) * time.Millisecond
				run.Metrics = make(map[string]float64)
				runs = append(runs, run)
			}
			if metric.Valid {
				runs[len(runs)-1].Metrics[metric.String] = value.Float64
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Projects lists the project keys that have at least one run.
func (s *Store) Projects() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	err := s.withRetry("list projects", func() error {
		keys = nil
		rows, err := s.db.Query(`SELECT DISTINCT project FROM analysis_runs`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	sort.Strings(keys)
	return keys, err
}

func normalizeKey(projectKey string) string {
	if projectKey = strings.TrimSpace(projectKey); projectKey == "" {
		return defaultKey
	}
	return projectKey
}

// withRetry re-runs fn with a linear backoff while sqlite reports lock
// contention.
func (s *Store) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil || !isLockError(err) {
			break
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*25) * time.Millisecond)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// IsCorruptError reports whether err means the history file is not a
// usable sqlite database.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
