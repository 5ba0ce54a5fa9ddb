package database

import (
	"database/sql"
	"fmt"
	"log"
)

// ledgerSchema holds the DDL per schema version: entry i upgrades a ledger
// at version i to version i+1. Only append.
var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS fetch_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    fetched INTEGER DEFAULT 0,
    skipped INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS fetch_attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES fetch_runs(id),
    region_id INTEGER NOT NULL,
    region_name TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('fetched', 'skipped', 'failed')),
    file_path TEXT,
    bytes INTEGER DEFAULT 0,
    error TEXT,
    attempted_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_attempts_run ON fetch_attempts(run_id);`,

	`CREATE INDEX IF NOT EXISTS idx_fetch_attempts_region ON fetch_attempts(region_name, status);`,
}

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading ledger version: %w", err)
	}
	return v, nil
}

// upgradeLedger applies the schema steps the ledger has not seen yet. A
// ledger written by a newer binary is refused rather than modified.
func upgradeLedger(conn *sql.DB) error {
	v, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	if v > len(ledgerSchema) {
		return fmt.Errorf("ledger schema version %d is newer than supported version %d", v, len(ledgerSchema))
	}

	for ; v < len(ledgerSchema); v++ {
		if err := applyStep(conn, ledgerSchema[v]); err != nil {
			return fmt.Errorf("ledger schema step %d: %w", v+1, err)
		}
		// modernc/sqlite ignores user_version inside a transaction. Every
		// step is idempotent, so a crash before this line only repeats it.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("stamping ledger version %d: %w", v+1, err)
		}
		log.Printf("Ledger schema at version %d", v+1)
	}
	return nil
}

func applyStep(conn *sql.DB, ddl string) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ddl); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
