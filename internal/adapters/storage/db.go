package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLDB is the database interface used by the stores, satisfied by *sql.DB.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// InitDB initializes the local preferences database schema.
// The canonical attendance data lives in the remote spreadsheet; SQLite
// holds only per-deployment preferences (skipped dates, sort order).
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS skipped_date (
		date_key TEXT PRIMARY KEY,
		marked_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preference (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
