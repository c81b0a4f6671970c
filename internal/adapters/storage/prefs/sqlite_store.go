package prefs

import (
	"context"
	"database/sql"
	"time"

	"rollcall/internal/adapters/storage"
)

const sortKeyPreference = "member_stats_sort"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new preferences store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// ListSkippedDates returns all skipped date-keys, oldest mark first.
// PRE: none
// POST: Returns the date-keys; empty slice when none are marked
func (s *SQLiteStore) ListSkippedDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT date_key FROM skipped_date ORDER BY marked_at, date_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// AddSkippedDate marks a date-key as "no meeting occurred".
// PRE: dateKey is a canonical date-key
// POST: The key is persisted; re-adding an existing key is a no-op
func (s *SQLiteStore) AddSkippedDate(ctx context.Context, dateKey string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO skipped_date (date_key, marked_at) VALUES (?, ?) ON CONFLICT(date_key) DO NOTHING",
		dateKey, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RemoveSkippedDate unmarks a date-key.
// PRE: dateKey is a canonical date-key
// POST: The key is removed; removing an absent key is a no-op
func (s *SQLiteStore) RemoveSkippedDate(ctx context.Context, dateKey string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM skipped_date WHERE date_key = ?", dateKey)
	return err
}

// GetSortKey returns the persisted member-statistics sort order.
// PRE: none
// POST: Returns "" when no preference has been saved
func (s *SQLiteStore) GetSortKey(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value FROM preference WHERE key = ?", sortKeyPreference)
	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSortKey persists the member-statistics sort order.
// PRE: value is one of the enumerated sort keys (validated by the caller)
// POST: Preference is persisted (insert or update)
func (s *SQLiteStore) SetSortKey(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO preference (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
		sortKeyPreference, value,
	)
	return err
}
