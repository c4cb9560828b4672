package history

import (
	"database/sql"
	"fmt"
)

// migrations[i] upgrades the database from user_version i to i+1.
var migrations = []string{
	`
CREATE TABLE analysis_runs (
  project      TEXT    NOT NULL,
  started_utc  TEXT    NOT NULL,
  run_id       TEXT    NOT NULL,
  file_count   INTEGER NOT NULL,
  error_count  INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project, started_utc)
);
CREATE TABLE project_metrics (
  project     TEXT NOT NULL,
  started_utc TEXT NOT NULL,
  metric      TEXT NOT NULL,
  value       REAL NOT NULL,
  PRIMARY KEY (project, started_utc, metric),
  FOREIGN KEY (project, started_utc) REFERENCES analysis_runs(project, started_utc) ON DELETE CASCADE
);
`,
	`
ALTER TABLE analysis_runs ADD COLUMN cached_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE analysis_runs ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0;
CREATE INDEX idx_analysis_runs_run_id ON analysis_runs(run_id);
`,
}

// SchemaVersion is the user_version a fully migrated database carries.
var SchemaVersion = len(migrations)

// EnsureSchema applies pending migrations. A database written by a newer
// release is rejected rather than modified.
func EnsureSchema(db *sql.DB) error {
	var current int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}
	for v := current; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v+1, err)
		}
	}
	return nil
}
