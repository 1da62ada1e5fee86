// Package sqlite provides a SQLite-backed implementation of the catalog, job,
// result and library statistics ports.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements the storage ports for SQLite.
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

// NewAdapter creates a connection and runs the schema migration.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One writer keeps counter updates serialized and lets ":memory:"
	// databases survive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	adapter := &Adapter{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := adapter.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return adapter, nil
}

// Close ensures the DB connection is closed gracefully.
func (a *Adapter) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Ping verifies the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		release_title TEXT,
		duration_seconds REAL,
		genre_hints TEXT,
		source_path TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tracks_owner ON tracks(owner);

	CREATE TABLE IF NOT EXISTS analysis_jobs (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		track_ids TEXT NOT NULL,
		status TEXT NOT NULL,
		total_tracks INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_jobs_owner_status ON analysis_jobs(owner, status);

	CREATE TABLE IF NOT EXISTS analysis_job_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY(job_id) REFERENCES analysis_jobs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS track_analysis (
		track_id TEXT PRIMARY KEY,
		bpm INTEGER NOT NULL,
		raw_bpm REAL NOT NULL,
		bpm_adjusted INTEGER NOT NULL DEFAULT 0,
		bpm_reason TEXT,
		musical_key TEXT NOT NULL,
		key_confidence REAL NOT NULL,
		energy INTEGER NOT NULL,
		raw_energy REAL NOT NULL,
		confidence REAL NOT NULL,
		source_id TEXT NOT NULL,
		source_title TEXT,
		analyzed_at TEXT NOT NULL
	);
	`
	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw.String, err)
	}
	return t, nil
}

func parseOptionalTime(raw sql.NullString) (*time.Time, error) {
	t, err := parseTime(raw)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
