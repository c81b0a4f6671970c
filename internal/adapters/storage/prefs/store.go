package prefs

import (
	"context"
)

// Store persists the skipped-date set and the preferred member-statistics
// sort order.
type Store interface {
	ListSkippedDates(ctx context.Context) ([]string, error)
	AddSkippedDate(ctx context.Context, dateKey string) error
	RemoveSkippedDate(ctx context.Context, dateKey string) error
	GetSortKey(ctx context.Context) (string, error)
	SetSortKey(ctx context.Context, value string) error
}
