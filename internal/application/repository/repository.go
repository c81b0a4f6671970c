// Package repository is the single in-process source of truth for
// attendance state. It mediates all reads and writes against the remote
// table, publishes immutable snapshots under atomic swap, and notifies
// observers through a broadcast channel.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/adapters/sheets"
	"rollcall/internal/adapters/storage/prefs"
	"rollcall/internal/application/reconcile"
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
)

// DefaultWaitTimeout bounds WaitForMembers so a never-populated snapshot
// cannot hang a caller indefinitely.
const DefaultWaitTimeout = 5 * time.Second

// Errors surfaced by repository operations.
var (
	ErrNoMembers   = errors.New("cannot save attendance with no known members")
	ErrWaitTimeout = errors.New("timed out waiting for a populated member snapshot")
)

// Repository holds the cached member and record snapshots.
//
// All mutation goes through LoadAll, RefreshMembers, Save, and
// ToggleDateSkipped; every update builds brand-new snapshot values and
// swaps them in under the mutex, so concurrent readers always observe a
// complete, internally consistent pairing.
type Repository struct {
	client      sheets.Client
	prefs       prefs.Store
	now         func() time.Time
	waitTimeout time.Duration

	mu         sync.RWMutex
	members    []roster.Member
	records    []attendance.Record // unfiltered; skipped dates stay here
	skipped    map[string]bool
	generation string
	loading    bool
	errMsg     string
	changed    chan struct{} // closed and replaced on every publish
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source (used for future-date filtering).
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithWaitTimeout overrides the WaitForMembers bound.
func WithWaitTimeout(d time.Duration) Option {
	return func(r *Repository) { r.waitTimeout = d }
}

// New creates a Repository over the given remote-table client and
// preferences store.
// PRE: client and prefsStore are non-nil
// POST: Returns an empty repository; call LoadAll to populate it
func New(client sheets.Client, prefsStore prefs.Store, opts ...Option) *Repository {
	r := &Repository{
		client:      client,
		prefs:       prefsStore,
		now:         time.Now,
		waitTimeout: DefaultWaitTimeout,
		skipped:     map[string]bool{},
		changed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// notifyLocked wakes all observers. Caller must hold r.mu.
func (r *Repository) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// Changed returns a channel that is closed on the next snapshot publish.
// Observers re-fetch the channel after each wakeup.
func (r *Repository) Changed() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changed
}

// Members returns the current member snapshot.
// POST: Returns a fresh slice; elements are immutable values
func (r *Repository) Members() []roster.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]roster.Member, len(r.members))
	copy(out, r.members)
	return out
}

// Records returns the externally visible record snapshot: skipped dates
// are filtered out, order is ascending by date.
func (r *Repository) Records() []attendance.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]attendance.Record, 0, len(r.records))
	for _, rec := range r.records {
		if r.skipped[rec.DateKey] {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// SkippedDates returns the skipped date-keys, sorted.
func (r *Repository) SkippedDates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.skipped))
	for key := range r.skipped {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// IsLoading reports whether a load/refresh/save is in flight.
func (r *Repository) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// ErrorMessage returns the user-facing message of the last failed
// operation, or "" when the last operation succeeded.
func (r *Repository) ErrorMessage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errMsg
}

// beginOperation publishes the loading state and clears any prior error.
func (r *Repository) beginOperation() {
	r.mu.Lock()
	r.loading = true
	r.errMsg = ""
	r.notifyLocked()
	r.mu.Unlock()
}

// failOperation publishes the failure; prior snapshots stay untouched
// (stale-but-consistent beats empty-but-broken).
func (r *Repository) failOperation(err error) {
	r.mu.Lock()
	r.loading = false
	r.errMsg = messageFor(err)
	r.notifyLocked()
	r.mu.Unlock()
}

// LoadAll fetches the full grid, reconciles it, and atomically replaces
// both the member and record snapshots together.
// PRE: none
// POST: On success both snapshots are replaced in one publish; on
// failure the error state is set and prior snapshots remain
func (r *Repository) LoadAll(ctx context.Context) error {
	r.beginOperation()

	grid, err := r.client.ReadGrid(ctx)
	if err != nil {
		r.failOperation(err)
		return err
	}

	skipped := r.fetchSkipped(ctx)

	generation := uuid.New().String()
	known := reconcile.MembersFromRows(grid.DataRows(), generation)
	res := reconcile.Reconcile(reconcile.Input{
		Header:  grid.Header(),
		Rows:    grid.DataRows(),
		Members: known,
		Now:     r.now(),
	})

	r.mu.Lock()
	r.generation = generation
	r.members = res.Members
	r.records = res.Records
	if skipped != nil {
		r.skipped = skipped
	}
	r.loading = false
	r.errMsg = ""
	r.notifyLocked()
	r.mu.Unlock()

	slog.Info("load_event", "members", len(res.Members), "records", len(res.Records))
	return nil
}

// fetchSkipped loads the persisted skipped-date set. Best effort: on a
// store failure the load proceeds with the prior set (nil return).
func (r *Repository) fetchSkipped(ctx context.Context) map[string]bool {
	keys, err := r.prefs.ListSkippedDates(ctx)
	if err != nil {
		slog.Warn("skipped_dates_load_failed", "error", err)
		return nil
	}
	skipped := make(map[string]bool, len(keys))
	for _, key := range keys {
		skipped[key] = true
	}
	return skipped
}

// RefreshMembers re-fetches and replaces only the member snapshot.
// Attendance records are not touched; each refreshed member's history is
// rebuilt from the cached records.
// PRE: none
// POST: Member snapshot replaced; record snapshot unchanged
func (r *Repository) RefreshMembers(ctx context.Context) error {
	r.beginOperation()

	grid, err := r.client.ReadGrid(ctx)
	if err != nil {
		r.failOperation(err)
		return err
	}

	r.mu.Lock()
	generation := r.generation
	if generation == "" {
		generation = uuid.New().String()
		r.generation = generation
	}
	members := reconcile.MembersFromRows(grid.DataRows(), generation)
	for i := range members {
		history := make(map[string]bool, len(r.records))
		for _, rec := range r.records {
			history[rec.DateKey] = rec.PresentIDs[members[i].ID]
		}
		members[i].AttendanceHistory = history
	}
	r.members = members
	r.loading = false
	r.errMsg = ""
	r.notifyLocked()
	r.mu.Unlock()

	slog.Info("refresh_event", "members", len(members))
	return nil
}

// Save writes one meeting's presence marks. The header append (for a new
// date) and the full per-row column write go out in a single remote
// batch, so a partially applied save is never observable. On success the
// cache is updated copy-on-write and re-published.
// PRE: dateKey is a canonical date-key; presentIDs holds member ids
// POST: Remote column and cache agree; member values are new instances
func (r *Repository) Save(ctx context.Context, dateKey string, presentIDs map[string]bool) error {
	r.mu.RLock()
	memberCount := len(r.members)
	r.mu.RUnlock()
	if memberCount == 0 {
		// Validation failure: rejected locally before any remote call.
		r.failOperation(ErrNoMembers)
		return ErrNoMembers
	}

	date, err := attendance.ParseDateKey(dateKey)
	if err != nil {
		err = fmt.Errorf("invalid date-key %q: %w", dateKey, err)
		r.failOperation(err)
		return err
	}
	key := attendance.DateKey(date)

	r.beginOperation()

	header, err := r.client.ReadHeader(ctx)
	if err != nil {
		r.failOperation(err)
		return err
	}

	col := findDateColumn(header, key)
	writes := make([]sheets.CellWrite, 0, memberCount+1)
	if col < 0 {
		// New meeting date: append as the last column.
		col = len(header)
		if col < attendance.FirstDateColumn {
			col = attendance.FirstDateColumn
		}
		writes = append(writes, sheets.CellWrite{Row: 0, Column: col, Value: key})
	}

	r.mu.RLock()
	members := make([]roster.Member, len(r.members))
	copy(members, r.members)
	r.mu.RUnlock()

	for _, m := range members {
		value := ""
		if presentIDs[m.ID] {
			value = attendance.PresentMarker
		}
		writes = append(writes, sheets.CellWrite{Row: m.Row - 1, Column: col, Value: value})
	}

	if err := r.client.WriteBatch(ctx, writes); err != nil {
		r.failOperation(err)
		return err
	}

	// Post-write verification: more than one column now carrying this
	// date means another writer raced us. The write itself succeeded,
	// so this is a warning, not a failure.
	if verifyHeader, err := r.client.ReadHeader(ctx); err == nil {
		if n := countDateColumns(verifyHeader, key); n > 1 {
			slog.Warn("concurrent_write_detected", "date_key", key, "columns", n)
		}
	}

	r.mu.Lock()
	newMembers := make([]roster.Member, 0, len(r.members))
	for _, m := range r.members {
		newMembers = append(newMembers, m.WithAttendance(key, presentIDs[m.ID]))
	}
	newRecord := attendance.NewRecord(date, col, presentIDs, newMembers)
	newRecords := make([]attendance.Record, 0, len(r.records)+1)
	replaced := false
	for _, rec := range r.records {
		if rec.DateKey == key {
			// Keep the original source column of an existing record.
			newRecord.Column = rec.Column
			newRecords = append(newRecords, newRecord)
			replaced = true
			continue
		}
		newRecords = append(newRecords, rec)
	}
	if !replaced {
		newRecords = append(newRecords, newRecord)
	}
	sort.Slice(newRecords, func(i, j int) bool {
		return newRecords[i].Date.Before(newRecords[j].Date)
	})
	r.members = newMembers
	r.records = newRecords
	r.loading = false
	r.errMsg = ""
	r.notifyLocked()
	r.mu.Unlock()

	slog.Info("save_event", "date_key", key, "present", len(newRecord.PresentIDs), "column", col)
	return nil
}

// ToggleDateSkipped flips a date-key's membership in the skipped set.
// The raw record stays cached, so toggling back needs no re-fetch.
// PRE: dateKey is a canonical date-key
// POST: Preference persisted and the filtered snapshot re-published
func (r *Repository) ToggleDateSkipped(ctx context.Context, dateKey string) error {
	r.mu.RLock()
	wasSkipped := r.skipped[dateKey]
	r.mu.RUnlock()

	var err error
	if wasSkipped {
		err = r.prefs.RemoveSkippedDate(ctx, dateKey)
	} else {
		err = r.prefs.AddSkippedDate(ctx, dateKey)
	}
	if err != nil {
		err = fmt.Errorf("failed to persist skipped date %q: %w", dateKey, err)
		r.failOperation(err)
		return err
	}

	r.mu.Lock()
	skipped := make(map[string]bool, len(r.skipped)+1)
	for k, v := range r.skipped {
		skipped[k] = v
	}
	if wasSkipped {
		delete(skipped, dateKey)
	} else {
		skipped[dateKey] = true
	}
	r.skipped = skipped
	r.errMsg = ""
	r.notifyLocked()
	r.mu.Unlock()

	slog.Info("skip_toggle_event", "date_key", dateKey, "skipped", !wasSkipped)
	return nil
}

// WaitForMembers blocks until the member snapshot is non-empty, the
// context is cancelled, or the wait timeout elapses.
// PRE: none
// POST: Returns the populated snapshot or ErrWaitTimeout/ctx error
func (r *Repository) WaitForMembers(ctx context.Context) ([]roster.Member, error) {
	timer := time.NewTimer(r.waitTimeout)
	defer timer.Stop()

	for {
		r.mu.RLock()
		n := len(r.members)
		ch := r.changed
		r.mu.RUnlock()
		if n > 0 {
			return r.Members(), nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrWaitTimeout
		}
	}
}

// MemberByID looks up a single member in the current snapshot.
func (r *Repository) MemberByID(id string) (roster.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.ID == id {
			return m, true
		}
	}
	return roster.Member{}, false
}

// RecordByDateKey looks up a visible (non-skipped) record.
func (r *Repository) RecordByDateKey(dateKey string) (attendance.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.skipped[dateKey] {
		return attendance.Record{}, false
	}
	for _, rec := range r.records {
		if rec.DateKey == dateKey {
			return rec, true
		}
	}
	return attendance.Record{}, false
}

// MembersByCategory groups the current snapshot by membership category.
func (r *Repository) MembersByCategory() map[roster.Category][]roster.Member {
	members := r.Members()
	out := make(map[roster.Category][]roster.Member)
	for _, m := range members {
		out[m.Category] = append(out[m.Category], m)
	}
	return out
}

// FilterMembersByName returns members whose name contains the query,
// case-insensitively. An empty query returns the full snapshot.
func (r *Repository) FilterMembersByName(query string) []roster.Member {
	members := r.Members()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return members
	}
	out := make([]roster.Member, 0, len(members))
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, m)
		}
	}
	return out
}

// CategoryTrend computes, per category, the mean attendance percentage
// over the last n visible records.
// PRE: n > 0
// POST: Returns percentages keyed by category; categories with no
// members are omitted
func (r *Repository) CategoryTrend(n int) map[roster.Category]float64 {
	members := r.Members()
	records := r.Records()
	if len(records) > n {
		records = records[len(records)-n:]
	}

	sizes := make(map[roster.Category]int)
	for _, m := range members {
		sizes[m.Category]++
	}

	out := make(map[roster.Category]float64)
	if len(records) == 0 {
		return out
	}
	for cat, size := range sizes {
		if size == 0 {
			continue
		}
		sum := 0.0
		for _, rec := range records {
			sum += float64(rec.CountByCategory[cat]) / float64(size) * 100
		}
		out[cat] = sum / float64(len(records))
	}
	return out
}

// findDateColumn returns the leftmost header column whose cell parses to
// the given date-key, or -1.
func findDateColumn(header []string, key string) int {
	for col := attendance.FirstDateColumn; col < len(header); col++ {
		if d, ok := attendance.ParseHeaderDate(header[col]); ok && attendance.DateKey(d) == key {
			return col
		}
	}
	return -1
}

// countDateColumns counts header columns carrying the given date-key.
func countDateColumns(header []string, key string) int {
	n := 0
	for col := attendance.FirstDateColumn; col < len(header); col++ {
		if d, ok := attendance.ParseHeaderDate(header[col]); ok && attendance.DateKey(d) == key {
			n++
		}
	}
	return n
}

// messageFor maps an internal error onto the single user-facing message.
func messageFor(err error) string {
	switch {
	case errors.Is(err, sheets.ErrNetworkUnavailable):
		return "No network connection. Check your connection and try again."
	case errors.Is(err, sheets.ErrAuthExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, sheets.ErrSheetNotFound):
		return "The attendance sheet could not be found."
	case errors.Is(err, sheets.ErrPermissionDenied):
		return "Edit access to the attendance sheet is required."
	case errors.Is(err, ErrNoMembers):
		return "Load the member list before saving attendance."
	default:
		return "Something went wrong talking to the attendance sheet."
	}
}
