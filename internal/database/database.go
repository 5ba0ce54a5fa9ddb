// Package database keeps the fetch ledger: one row per fetch run and one
// per region attempt. Observations are never stored here; the dataset is
// rebuilt from the raw files on every load.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite fetch ledger.
type DB struct {
	conn *sql.DB
	path string
}

var pragmas = []struct {
	stmt string
	what string
}{
	{"PRAGMA journal_mode=WAL", "setting journal mode"},
	{"PRAGMA foreign_keys=ON", "enabling foreign keys"},
	{"PRAGMA busy_timeout=5000", "setting busy timeout"},
}

// Open creates or opens the ledger at dbPath and applies pending migrations.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Parallel fetch workers share this handle; one writer avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	if err := upgradeLedger(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the ledger file path.
func (db *DB) Path() string {
	return db.path
}
