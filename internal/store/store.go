// Package store persists project records and their custom commands in a
// local SQLite database keyed by project path. Every mutating operation is
// transactional: a failure mid-operation leaves the store in its
// pre-operation state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	path         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	languages    TEXT NOT NULL DEFAULT '[]',
	status       TEXT NOT NULL DEFAULT 'active',
	notes        TEXT NOT NULL DEFAULT '',
	favorite     INTEGER NOT NULL DEFAULT 0,
	present      INTEGER NOT NULL DEFAULT 1,
	first_seen   TEXT NOT NULL,
	last_scanned TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_commands (
	path     TEXT NOT NULL REFERENCES projects(path) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	template TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (path, name)
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_projects_present ON projects(present);
`

// Store is a durable SQLite-backed project store.
type Store struct {
	db        *sql.DB
	path      string
	logger    *zap.Logger
	recovered bool
}

// Open opens (or creates) the store at path. A corrupt database file is
// moved aside and a fresh schema is initialized; the data loss is reported
// through RecoveredFromCorruption and a warn log, never silently swallowed.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &Store{path: path, logger: logger}

	db, err := openDB(ctx, path)
	if err == nil {
		err = migrate(ctx, db)
	}
	if err != nil {
		if db != nil {
			db.Close()
		}
		if !isCorruption(err) {
			return nil, fmt.Errorf("opening store: %w", err)
		}

		// Move the unreadable file aside and start fresh.
		quarantine := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			return nil, fmt.Errorf("quarantining corrupt store: %w", renameErr)
		}
		logger.Warn("store file was corrupt, reinitialized with empty schema",
			zap.String("path", path),
			zap.String("quarantined", quarantine),
			zap.Error(err),
		)

		db, err = openDB(ctx, path)
		if err == nil {
			err = migrate(ctx, db)
		}
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("reinitializing store: %w", err)
		}
		s.recovered = true
	}

	s.db = db
	return s, nil
}

// openDB opens the database and applies connection pragmas.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn between the scanner and user edits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}
	return db, nil
}

// migrate creates the schema and verifies the file is a usable database.
func migrate(ctx context.Context, db *sql.DB) error {
	var status string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&status); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if status != "ok" {
		return fmt.Errorf("integrity check failed: %s", status)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isCorruption reports whether err indicates an unreadable or malformed
// database file rather than an environmental failure.
func isCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a database") ||
		strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "integrity check failed")
}

// RecoveredFromCorruption reports whether Open had to discard a corrupt
// database file and start over.
func (s *Store) RecoveredFromCorruption() bool {
	return s.recovered
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
