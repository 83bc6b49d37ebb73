// Package store is the data access layer: one SQLite database holding
// leads and scrape runs.
//
// Open applies the production-safe pragmas (WAL, foreign keys, busy
// timeout) via EXEC so they work with any database/sql driver; callers
// blank-import modernc.org/sqlite. Timestamps are stored as Unix
// milliseconds; nested lead data rides in JSON columns.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Store wraps the leadscout database.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the database at path, applies pragmas
// and the schema, and verifies the connection. Parent directories are
// created for file-backed paths.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// OpenMemory opens an in-memory database for testing. MaxOpenConns(1)
// keeps every query on the same connection; each ":memory:" connection
// is otherwise a separate database. Closed via t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
