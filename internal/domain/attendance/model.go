package attendance

import (
	"errors"
	"strings"
	"time"

	"rollcall/internal/domain/roster"
)

// PresentMarker is the single token that marks a member present in a
// date-column cell. Comparison is case-insensitive after trimming;
// every other cell content means absent.
const PresentMarker = "x"

// DateSeparator is the character a header cell must contain to be a
// candidate date column.
const DateSeparator = "/"

// DateKeyLayout is the canonical date-key format (month/day/2-digit-year,
// no zero padding), matching how dates are written into the header row.
const DateKeyLayout = "1/2/06"

// headerLayouts are the accepted textual renderings of a header date.
// Two renderings of the same calendar date parse to the same date-key.
var headerLayouts = []string{
	"1/2/06",
	"01/02/06",
	"1/2/2006",
	"01/02/2006",
}

// FirstDateColumn is the index of the first possible date column in the
// header row (columns 0 and 1 hold name and category).
const FirstDateColumn = 2

// Domain errors
var (
	ErrBadDateKey = errors.New("date-key does not parse as a calendar date")
)

// ParseHeaderDate parses a raw header cell into a calendar date.
// PRE: none
// POST: Returns the date truncated to midnight UTC and true, or false if
// the cell is not a date column
func ParseHeaderDate(cell string) (time.Time, bool) {
	text := strings.TrimSpace(cell)
	if text == "" || !strings.Contains(text, DateSeparator) {
		return time.Time{}, false
	}
	for _, layout := range headerLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DateKey formats a calendar date as its canonical date-key.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a canonical date-key back into a calendar date.
// PRE: none
// POST: Returns ErrBadDateKey if key is not a canonical date-key
func ParseDateKey(key string) (time.Time, error) {
	t, ok := ParseHeaderDate(key)
	if !ok {
		return time.Time{}, ErrBadDateKey
	}
	return t, nil
}

// IsPresentMark reports whether a raw cell value counts as a presence mark.
// PRE: none
// POST: Returns true only for the single present-marker token
func IsPresentMark(cell string) bool {
	return strings.EqualFold(strings.TrimSpace(cell), PresentMarker)
}

// Record holds the reconciled state of one meeting date.
// After a Record is published to the cache it is never field-mutated;
// updates replace the whole value.
type Record struct {
	Date            time.Time
	DateKey         string
	Column          int // 0-based source column in the backing table
	PresentIDs      map[string]bool
	CountByCategory map[roster.Category]int
}

// NewRecord builds a Record for a meeting date from the set of present
// member ids.
// PRE: date is a calendar date; members is the reconciled member list
// POST: Returns a Record with fresh id-set and category-count maps
func NewRecord(date time.Time, column int, presentIDs map[string]bool, members []roster.Member) Record {
	ids := make(map[string]bool, len(presentIDs))
	counts := make(map[roster.Category]int)
	for _, m := range members {
		if presentIDs[m.ID] {
			ids[m.ID] = true
			counts[m.Category]++
		}
	}
	return Record{
		Date:            date,
		DateKey:         DateKey(date),
		Column:          column,
		PresentIDs:      ids,
		CountByCategory: counts,
	}
}

// Validate checks if the Record has valid data.
// PRE: Record struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (r *Record) Validate() error {
	if r.Date.IsZero() {
		return errors.New("record date must be set")
	}
	if r.DateKey == "" {
		return errors.New("record date-key must be set")
	}
	if r.Column < FirstDateColumn {
		return errors.New("record column must be at or after the first date column")
	}
	return nil
}

// Present reports whether the given member id is marked present.
func (r *Record) Present(memberID string) bool {
	return r.PresentIDs[memberID]
}

// PresentCount returns the number of members marked present.
func (r *Record) PresentCount() int {
	return len(r.PresentIDs)
}
