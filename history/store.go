// Package history keeps a SQLite ledger of past runs and their per-account
// results.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// migrations are applied in order on open. Each is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		mode        TEXT NOT NULL DEFAULT 'sequential',
		total       INTEGER NOT NULL,
		succeeded   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_results (
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		account    TEXT NOT NULL,
		success    INTEGER NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at)`,
}

// Run is one recorded execution.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       string
	Total      int
	Succeeded  int
	Results    []AccountResult
}

// Failed returns the number of failed accounts.
func (r Run) Failed() int { return r.Total - r.Succeeded }

// AccountResult is one account line within a run. Account is stored
// desensitised.
type AccountResult struct {
	Account string
	Success bool
	Message string
	Elapsed time.Duration
}

// Store is a SQLite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RecordRun writes a run and its results in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, mode, total, succeeded) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Mode, run.Total, run.Succeeded,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range run.Results {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO account_results (run_id, position, account, success, message, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, r.Account, r.Success, r.Message, r.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their results.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, mode, total, succeeded FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Mode, &r.Total, &r.Succeeded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Single connection: results are loaded after the runs cursor is closed.
	_ = rows.Close()

	for i := range runs {
		res, err := s.results(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Results = res
	}
	return runs, nil
}

// Get returns one run by id, or nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var r Run
	var started, finished string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, mode, total, succeeded FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &started, &finished, &r.Mode, &r.Total, &r.Succeeded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	if r.Results, err = s.results(ctx, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) results(ctx context.Context, runID string) ([]AccountResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account, success, message, elapsed_ms FROM account_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []AccountResult
	for rows.Next() {
		var r AccountResult
		var ms int64
		if err := rows.Scan(&r.Account, &r.Success, &r.Message, &ms); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Elapsed = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
