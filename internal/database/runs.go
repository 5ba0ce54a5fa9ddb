package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun inserts a new run and returns its ID.
func (db *DB) StartRun(startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO fetch_runs (id, started_at) VALUES (?, ?)",
		id, FormatTime(startedAt),
	)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run with its end time and counters.
func (db *DB) FinishRun(runID string, finishedAt time.Time, fetched, skipped, failed int) error {
	_, err := db.conn.Exec(
		`UPDATE fetch_runs SET finished_at = ?, fetched = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		FormatTime(finishedAt), fetched, skipped, failed, runID,
	)
	return err
}

// RecordAttempt inserts the outcome of one region fetch.
func (db *DB) RecordAttempt(a Attempt) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO fetch_attempts
		(run_id, region_id, region_name, status, file_path, bytes, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.RegionID, a.RegionName, a.Status, a.FilePath, a.Bytes, a.Error, a.AttemptedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("recording attempt for %s: %w", a.RegionName, err)
	}
	return result.LastInsertId()
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, started_at, finished_at, fetched, skipped, failed
		FROM fetch_runs WHERE id = ?`, runID,
	)
	var r Run
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Fetched, &r.Skipped, &r.Failed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, started_at, finished_at, fetched, skipped, failed
		FROM fetch_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Fetched, &r.Skipped, &r.Failed); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetAttemptsForRun returns the attempts of a run ordered by region ID.
func (db *DB) GetAttemptsForRun(runID string) ([]Attempt, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, region_id, region_name, status, file_path, bytes, error, attempted_at
		FROM fetch_attempts WHERE run_id = ? ORDER BY region_id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// GetLastFetch returns the most recent successful fetch of a region, or nil.
func (db *DB) GetLastFetch(regionName string) (*Attempt, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, region_id, region_name, status, file_path, bytes, error, attempted_at
		FROM fetch_attempts WHERE region_name = ? AND status = ?
		ORDER BY attempted_at DESC, id DESC LIMIT 1`, regionName, StatusFetched,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts, err := scanAttempts(rows)
	if err != nil || len(attempts) == 0 {
		return nil, err
	}
	return &attempts[0], nil
}

// GetStats returns aggregate ledger statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM fetch_runs", &s.Runs},
		{"SELECT COUNT(*) FROM fetch_attempts", &s.Attempts},
		{"SELECT COUNT(*) FROM fetch_attempts WHERE status = 'fetched'", &s.Fetched},
		{"SELECT COUNT(*) FROM fetch_attempts WHERE status = 'skipped'", &s.Skipped},
		{"SELECT COUNT(*) FROM fetch_attempts WHERE status = 'failed'", &s.Failed},
		{"SELECT COUNT(DISTINCT region_name) FROM fetch_attempts WHERE status = 'fetched'", &s.RegionsFetched},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	err := db.conn.QueryRow(
		"SELECT id, started_at FROM fetch_runs ORDER BY started_at DESC, rowid DESC LIMIT 1",
	).Scan(&s.LastRunID, &s.LastRunStarted)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return s, nil
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.RunID, &a.RegionID, &a.RegionName, &a.Status,
			&a.FilePath, &a.Bytes, &a.Error, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// FormatTime renders t the way the ledger stores timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
