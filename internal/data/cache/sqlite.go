package cache

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
	maxAttempts      = 5

	// sqliteFormat is stored in user_version. Entries written in another
	// format are discarded on open.
	sqliteFormat = 1
)

const sqliteSchema = `
DROP TABLE IF EXISTS cache_entries;
CREATE TABLE cache_entries (
  type  TEXT NOT NULL,
  id    TEXT NOT NULL,
  hash  TEXT NOT NULL,
  value BLOB NOT NULL,
  PRIMARY KEY (type, id)
) WITHOUT ROWID;
`

// SQLite keeps entries in a single table of a sqlite database file.
type SQLite struct {
	path string
	db   *sql.DB
}

var _ Driver = (*SQLite)(nil)

func OpenSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cache database path must not be empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache database path %q is a directory, expected file", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open(sqliteDriverName, "file:"+path+"?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := prepareCacheTable(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite cache %q: %w", path, err)
	}
	return &SQLite{path: path, db: db}, nil
}

func prepareCacheTable(db *sql.DB) error {
	var format int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&format); err != nil {
		return err
	}
	if format == sqliteFormat {
		return nil
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, sqliteFormat))
	return err
}

func (s *SQLite) Store(key Key, value []byte, hash string) error {
	return s.withRetry("store cache entry", func() error {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO cache_entries (type, id, hash, value) VALUES (?, ?, ?, ?)`,
			key.Type, key.ID, hash, value)
		return err
	})
}

func (s *SQLite) Restore(key Key, hash string) ([]byte, error) {
	var value []byte
	err := s.withRetry("restore cache entry", func() error {
		return s.db.QueryRow(`SELECT value FROM cache_entries WHERE type = ? AND id = ? AND hash = ?`,
			key.Type, key.ID, hash).Scan(&value)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	return value, err
}

// Remove matches keys in Go so the pattern syntax is the same for every
// driver, then deletes the matches in one transaction.
func (s *SQLite) Remove(pattern string) error {
	g, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	return s.withRetry("remove cache entries", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.Query(`SELECT type, id FROM cache_entries`)
		if err != nil {
			return err
		}
		var doomed []Key
		for rows.Next() {
			var k Key
			if err := rows.Scan(&k.Type, &k.ID); err != nil {
				rows.Close()
				return fmt.Errorf("scan cache key: %w", err)
			}
			if g.Match(k.String()) {
				doomed = append(doomed, k)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, k := range doomed {
			if _, err := tx.Exec(`DELETE FROM cache_entries WHERE type = ? AND id = ?`, k.Type, k.ID); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Path() string { return s.path }

// withRetry re-runs fn with a linear backoff while sqlite reports lock
// contention. sql.ErrNoRows is returned unwrapped.
func (s *SQLite) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || stderrors.Is(err, sql.ErrNoRows) {
			return err
		}
		if !isLockError(err) {
			break
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*25) * time.Millisecond)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
