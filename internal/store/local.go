// Package store persists knowledge entries, thread-account links, personal
// accounts, and the usage log in SQLite. It implements the fetch collaborators
// the knowledge and identity packages consume.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"knowctx/internal/logging"
)

// LocalStore is the SQLite-backed storage layer.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
// Use ":memory:" for an ephemeral store.
func NewLocalStore(path string) (*LocalStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Opened local store at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	// The embedding column is reserved for the similarity-search pipeline;
	// the aggregation path never consults it.
	entriesTable := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		scope_type TEXT NOT NULL,
		scope_key TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		content_tokens INTEGER NOT NULL DEFAULT 0,
		usage_context TEXT NOT NULL DEFAULT 'always',
		is_active INTEGER NOT NULL DEFAULT 1,
		embedding TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_entries_scope ON knowledge_entries(scope_type, scope_key);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON knowledge_entries(created_at);
	`

	threadsTable := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		account_ref TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	accountsTable := `
	CREATE TABLE IF NOT EXISTS personal_accounts (
		account_ref TEXT PRIMARY KEY,
		canonical TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	usageTable := `
	CREATE TABLE IF NOT EXISTS usage_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id TEXT NOT NULL,
		consumer_id TEXT NOT NULL,
		tokens INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_usage_entry ON usage_log(entry_id);
	`

	for _, table := range []string{entriesTable, threadsTable, accountsTable, usageTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// GetDB exposes the underlying handle for diagnostics.
func (s *LocalStore) GetDB() *sql.DB {
	return s.db
}

// Stats returns row counts per table.
func (s *LocalStore) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"knowledge_entries", "threads", "personal_accounts", "usage_log"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
