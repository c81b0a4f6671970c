package roster

import (
	"errors"
	"fmt"
	"strings"
)

// Max length constants for spreadsheet-sourced fields.
const (
	MaxNameLength = 100
)

// Category is one of the five fixed membership tags, stored in the
// backing table as a short code.
type Category string

// Membership categories in canonical order.
const (
	CategoryRegular   Category = "REG"
	CategoryStudent   Category = "STU"
	CategoryAssociate Category = "ASC"
	CategoryTrial     Category = "TRL"
	CategoryHonorary  Category = "HON"
)

// categoryOrder fixes the canonical sort order of the five categories.
var categoryOrder = []Category{
	CategoryRegular,
	CategoryStudent,
	CategoryAssociate,
	CategoryTrial,
	CategoryHonorary,
}

var categoryLabels = map[Category]string{
	CategoryRegular:   "Regular",
	CategoryStudent:   "Student",
	CategoryAssociate: "Associate",
	CategoryTrial:     "Trial",
	CategoryHonorary:  "Honorary",
}

// Domain errors
var (
	ErrUnknownCategory = errors.New("unknown membership category code")
)

// Categories returns the five categories in canonical order.
// PRE: none
// POST: Returns a fresh slice; callers may not mutate the canonical order
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// CategoryRank returns the position of c in the canonical order.
// PRE: none
// POST: Returns 0..4 for known categories, len(order) for unknown ones
func CategoryRank(c Category) int {
	for i, cat := range categoryOrder {
		if cat == c {
			return i
		}
	}
	return len(categoryOrder)
}

// ParseCategory parses a spreadsheet category code.
// PRE: none
// POST: Returns the category, or ErrUnknownCategory for unrecognised codes
func ParseCategory(code string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := categoryLabels[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, code)
	}
	return c, nil
}

// Label returns the human-readable name for the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// NewMemberID derives a stable member id from the backing-table row
// position and the table generation minted at reconciliation time.
// PRE: row >= 2 (row 1 is the header row)
// POST: Returns the id; the same row in the same generation always maps
// to the same id
func NewMemberID(generation string, row int) string {
	return fmt.Sprintf("row%d-%s", row, generation)
}

// Member holds state for one person in the backing table.
// AttendanceHistory maps canonical date-keys to presence. The map is
// treated as immutable: every change goes through WithAttendance, which
// returns a new Member value.
type Member struct {
	ID                string
	Name              string
	Category          Category
	Row               int // 1-based row in the backing table; data rows start at 2
	AttendanceHistory map[string]bool
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Name must not be empty, Row must point below the header row
func (m *Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("member name cannot be empty")
	}
	if len(m.Name) > MaxNameLength {
		return errors.New("member name cannot exceed 100 characters")
	}
	if m.Row < 2 {
		return errors.New("member row must be below the header row")
	}
	if _, ok := categoryLabels[m.Category]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, m.Category)
	}
	return nil
}

// WithAttendance returns a new Member whose history has the given
// date-key set to present/absent. The receiver is not mutated.
// PRE: dateKey is a canonical date-key
// POST: Returns a new Member value with a freshly copied history map
func (m Member) WithAttendance(dateKey string, present bool) Member {
	history := make(map[string]bool, len(m.AttendanceHistory)+1)
	for k, v := range m.AttendanceHistory {
		history[k] = v
	}
	history[dateKey] = present
	m.AttendanceHistory = history
	return m
}

// Attended reports whether the member was present on the given date-key.
// PRE: none
// POST: Returns false for dates with no recorded entry
func (m *Member) Attended(dateKey string) bool {
	return m.AttendanceHistory[dateKey]
}

// AttendedCount returns the number of meetings the member attended.
func (m *Member) AttendedCount() int {
	n := 0
	for _, present := range m.AttendanceHistory {
		if present {
			n++
		}
	}
	return n
}
