// Package ledger keeps the history of apply and rebuild runs in a local
// SQLite database, so "mache history" can show what the last runs did and
// which patches failed.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	mcerrors "mache/internal/errors"
	"mache/internal/patcher"
)

// Run is one recorded invocation.
type Run struct {
	ID         int64
	Started    time.Time
	Command    string
	Backend    string
	Input      string
	Output     string
	Patched    int
	Unmodified int
	Written    int
	Removed    int
	ExitCode   int
	Digest     string
	Failures   []patcher.Failure
}

// Failed is the number of recorded failures.
func (r Run) Failed() int { return len(r.Failures) }

// Ledger is an open history database.
type Ledger struct {
	db *sql.DB
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started TEXT NOT NULL,
		command TEXT NOT NULL,
		backend TEXT,
		input TEXT,
		output TEXT,
		patched INTEGER NOT NULL DEFAULT 0,
		unmodified INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		exit_code INTEGER NOT NULL DEFAULT 0,
		digest TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS failures (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		patch TEXT NOT NULL,
		detail TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)`,
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, mcerrors.IO(fmt.Errorf("create ledger dir: %w", err), "ledger_open_failed")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, mcerrors.IO(fmt.Errorf("open ledger: %w", err), "ledger_open_failed")
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, mcerrors.IO(fmt.Errorf("create ledger schema: %w", err), "ledger_open_failed")
		}
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record stores run and its failures and returns the new run id.
func (l *Ledger) Record(ctx context.Context, run Run) (int64, error) {
	if run.Started.IsZero() {
		run.Started = time.Now()
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, mcerrors.IO(fmt.Errorf("begin: %w", err), "ledger_write_failed")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO runs
		(started, command, backend, input, output, patched, unmodified, written, removed, exit_code, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Started.UTC().Format(time.RFC3339Nano), run.Command, run.Backend, run.Input, run.Output,
		run.Patched, run.Unmodified, run.Written, run.Removed, run.ExitCode, run.Digest)
	if err != nil {
		return 0, mcerrors.IO(fmt.Errorf("insert run: %w", err), "ledger_write_failed")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mcerrors.IO(fmt.Errorf("insert run: %w", err), "ledger_write_failed")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO failures (run_id, patch, detail) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, mcerrors.IO(fmt.Errorf("prepare: %w", err), "ledger_write_failed")
	}
	defer stmt.Close()
	for _, f := range run.Failures {
		if _, err := stmt.ExecContext(ctx, id, f.Patch, f.Detail); err != nil {
			return 0, mcerrors.IO(fmt.Errorf("insert failure: %w", err), "ledger_write_failed")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, mcerrors.IO(fmt.Errorf("commit: %w", err), "ledger_write_failed")
	}
	return id, nil
}

// Recent returns up to n runs, newest first, with their failures.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, started, command, backend, input, output,
		patched, unmodified, written, removed, exit_code, digest
		FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, mcerrors.IO(fmt.Errorf("query runs: %w", err), "ledger_read_failed")
	}
	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var backend, input, output, digest sql.NullString
		if err := rows.Scan(&r.ID, &started, &r.Command, &backend, &input, &output,
			&r.Patched, &r.Unmodified, &r.Written, &r.Removed, &r.ExitCode, &digest); err != nil {
			rows.Close()
			return nil, mcerrors.IO(fmt.Errorf("scan run: %w", err), "ledger_read_failed")
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Backend, r.Input, r.Output, r.Digest = backend.String, input.String, output.String, digest.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mcerrors.IO(fmt.Errorf("read runs: %w", err), "ledger_read_failed")
	}
	rows.Close()

	for i := range runs {
		fs, err := l.failures(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Failures = fs
	}
	return runs, nil
}

func (l *Ledger) failures(ctx context.Context, runID int64) ([]patcher.Failure, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT patch, detail FROM failures WHERE run_id = ? ORDER BY patch, detail`, runID)
	if err != nil {
		return nil, mcerrors.IO(fmt.Errorf("query failures: %w", err), "ledger_read_failed")
	}
	defer rows.Close()
	var out []patcher.Failure
	for rows.Next() {
		var f patcher.Failure
		var detail sql.NullString
		if err := rows.Scan(&f.Patch, &detail); err != nil {
			return nil, mcerrors.IO(fmt.Errorf("scan failure: %w", err), "ledger_read_failed")
		}
		f.Detail = detail.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mcerrors.IO(fmt.Errorf("read failures: %w", err), "ledger_read_failed")
	}
	return out, nil
}
