// Package sqlite implements the domain stores on a local SQLite file. It is
// the durable option for single-host deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	contest    INTEGER PRIMARY KEY,
	draw_date  TEXT NOT NULL,
	numbers    TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_runs (
	id              TEXT PRIMARY KEY,
	budget          REAL NOT NULL,
	lambda          REAL NOT NULL,
	solver          TEXT NOT NULL DEFAULT '',
	bitstring       TEXT NOT NULL DEFAULT '',
	energy          REAL NOT NULL DEFAULT 0,
	display_energy  REAL NOT NULL DEFAULT 0,
	ising_offset    REAL NOT NULL DEFAULT 0,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	selection       TEXT NOT NULL DEFAULT '{}',
	total_cost      TEXT NOT NULL DEFAULT '0',
	total_score     REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_portfolio_runs_created_at ON portfolio_runs(created_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event      TEXT NOT NULL,
	detail     TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
`

// busyTimeoutMs is how long a writer waits on a locked database.
const busyTimeoutMs = 5000

// Client owns the database handle.
type Client struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Client, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeoutMs))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer at a time; budgets are solved concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Client{db: db}, nil
}

// DB returns the underlying handle.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping checks the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the handle.
func (c *Client) Close() error {
	return c.db.Close()
}

// Timestamps are stored as unix nanoseconds.
func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
