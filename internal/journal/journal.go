// Package journal persists proof-verification outcomes to SQLite so a
// session's failed checks survive the process and can be inspected later.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scape1989/geo-logic/internal/checker"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	schemaVersion = 1

	// busyTimeoutMS is the SQLite busy timeout in milliseconds.
	busyTimeoutMS = 5000
)

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS checks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tool        TEXT    NOT NULL,
		args        TEXT    NOT NULL DEFAULT '',
		ok          INTEGER NOT NULL,
		error       TEXT    NOT NULL DEFAULT '',
		duration_us INTEGER NOT NULL DEFAULT 0,
		checked_num INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_checks_tool ON checks(tool, id)`,

	`CREATE INDEX IF NOT EXISTS idx_checks_ok ON checks(ok, id)`,
}

// Journal records verification outcomes in a SQLite database. It
// implements checker.Recorder.
type Journal struct {
	db *sql.DB
}

var _ checker.Recorder = (*Journal)(nil)

// Open opens (creating if needed) the journal database at path.
//
// The database is created with WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes). The schema is migrated
// automatically.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("journal: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("journal: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("journal: record schema version: %w", err)
	}

	return nil
}

// Record stores one verification outcome.
func (j *Journal) Record(ctx context.Context, rec checker.Record) error {
	ok := 0
	if rec.OK {
		ok = 1
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO checks (tool, args, ok, error, duration_us, checked_num)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Tool, rec.Args, ok, rec.Err, rec.Duration.Microseconds(), rec.CheckedNum,
	)
	if err != nil {
		return fmt.Errorf("journal: record check: %w", err)
	}

	return nil
}

// Entry is one stored verification outcome.
type Entry struct {
	Tool       string
	Args       string
	OK         bool
	Err        string
	Duration   time.Duration
	CheckedNum int64
	CreatedAt  string
}

// Failures returns the n most recent failed checks, newest first.
func (j *Journal) Failures(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT tool, args, ok, error, duration_us, checked_num, created_at
		FROM checks
		WHERE ok = 0
		ORDER BY id DESC
		LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: get failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Recent returns the n most recent checks regardless of outcome, newest
// first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT tool, args, ok, error, duration_us, checked_num, created_at
		FROM checks
		ORDER BY id DESC
		LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: get recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Len returns the number of stored checks.
func (j *Journal) Len(ctx context.Context) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("journal: count checks: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			ok         int
			durationUS int64
		)
		if err := rows.Scan(&e.Tool, &e.Args, &ok, &e.Err, &durationUS, &e.CheckedNum, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan check: %w", err)
		}
		e.OK = ok != 0
		e.Duration = time.Duration(durationUS) * time.Microsecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: check rows: %w", err)
	}
	return entries, nil
}
