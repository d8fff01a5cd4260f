// Package store persists the tool registry in SQLite: primitive
// definitions (unique by name), the append-only execution record log,
// the single-row permission settings, and the per-primitive data table
// the sandbox's data-access handle is scoped to.
//
// Storage location: .toolforge/registry.db
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const timeFormat = "2006-01-02 15:04:05"

// Store wraps the SQLite database behind a mutex. Registry CRUD may
// block on I/O here; callers must not hold the mount cache lock while
// calling into the store.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *zap.Logger
}

// Open creates or opens the registry database at the given path.
func Open(dbPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, log: log.Named("store")}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.log.Debug("registry store opened", zap.String("path", dbPath))
	return s, nil
}

// initialize creates the database schema idempotently.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS primitives (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		icon TEXT NOT NULL DEFAULT '',
		input_schema TEXT NOT NULL DEFAULT '{}',
		handler TEXT NOT NULL,
		timeout_ms INTEGER NOT NULL,
		sandboxed INTEGER NOT NULL DEFAULT 1,
		enabled INTEGER NOT NULL DEFAULT 1,
		built_in INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_primitives_category ON primitives(category);
	CREATE INDEX IF NOT EXISTS idx_primitives_enabled ON primitives(enabled);

	CREATE TABLE IF NOT EXISTS execution_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		primitive_id TEXT NOT NULL,
		primitive_name TEXT NOT NULL,
		input TEXT NOT NULL DEFAULT '{}',
		output TEXT,
		error TEXT,
		success INTEGER NOT NULL,
		execution_time_ms INTEGER NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_execution_records_primitive ON execution_records(primitive_id);
	CREATE INDEX IF NOT EXISTS idx_execution_records_started ON execution_records(started_at);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS primitive_data (
		primitive_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (primitive_id, key)
	);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.log.Debug("closing registry store", zap.String("path", s.dbPath))
		return s.db.Close()
	}
	return nil
}
