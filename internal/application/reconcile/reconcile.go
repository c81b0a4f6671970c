// Package reconcile turns the raw cell grid of the backing table into
// the typed attendance model. It is pure: messy source data (duplicate
// date columns, unparseable headers, orphan cells) is silently dropped,
// never escalated to an error.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
)

// Input carries the raw grid and the known member list.
type Input struct {
	Header  []string
	Rows    [][]string // data rows; index 0 is table row 2
	Members []roster.Member
	Now     time.Time // optional: if zero, time.Now() is used
}

// Result carries the reconciled model. Members are fresh values with
// freshly built history maps; the input member list is never mutated.
type Result struct {
	Members []roster.Member
	Records []attendance.Record
}

// dateColumn is one surviving date column after dedup and future filtering.
type dateColumn struct {
	date time.Time
	key  string
	col  int
}

// Reconcile parses the grid into members-with-history and one record per
// surviving meeting date.
// PRE: Input.Members carry valid Row positions (>= 2)
// POST: Records are sorted ascending by date, at most one per date-key;
// dates after "today" are excluded; output shares no maps with the input
func Reconcile(in Input) Result {
	out := Result{
		Members: make([]roster.Member, 0, len(in.Members)),
		Records: make([]attendance.Record, 0),
	}
	if len(in.Header) == 0 {
		// An empty sheet is a valid, if degenerate, state.
		return out
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	columns := dateColumns(in.Header, today)

	// Rebuild every member with a fresh history map (copy-on-write).
	for _, m := range in.Members {
		history := make(map[string]bool, len(columns))
		for _, dc := range columns {
			history[dc.key] = attendance.IsPresentMark(cellAt(in.Rows, m.Row-2, dc.col))
		}
		m.AttendanceHistory = history
		out.Members = append(out.Members, m)
	}

	for _, dc := range columns {
		present := make(map[string]bool)
		for _, m := range out.Members {
			if m.AttendanceHistory[dc.key] {
				present[m.ID] = true
			}
		}
		out.Records = append(out.Records, attendance.NewRecord(dc.date, dc.col, present, out.Members))
	}

	sort.Slice(out.Records, func(i, j int) bool {
		return out.Records[i].Date.Before(out.Records[j].Date)
	})
	return out
}

// dateColumns scans the header for date columns, keeping the leftmost
// column for each calendar date and dropping dates after today.
func dateColumns(header []string, today time.Time) []dateColumn {
	seen := make(map[string]bool)
	var columns []dateColumn
	for col := attendance.FirstDateColumn; col < len(header); col++ {
		date, ok := attendance.ParseHeaderDate(header[col])
		if !ok {
			continue
		}
		if date.After(today) {
			// Future placeholders have no marks yet and would corrupt
			// streak computation.
			continue
		}
		key := attendance.DateKey(date)
		if seen[key] {
			// Duplicate rendering of an already seen date: leftmost wins.
			continue
		}
		seen[key] = true
		columns = append(columns, dateColumn{date: date, key: key, col: col})
	}
	return columns
}

// MembersFromRows builds the member list from the raw data rows.
// Rows with an empty name cell are skipped; an unrecognised category
// code falls back to Regular rather than dropping the member.
// PRE: generation is the table-generation token for this pass
// POST: Returns members with empty history maps and 1-based Row set
func MembersFromRows(rows [][]string, generation string) []roster.Member {
	members := make([]roster.Member, 0, len(rows))
	for i, row := range rows {
		name := ""
		if len(row) > 0 {
			name = strings.TrimSpace(row[0])
		}
		if name == "" {
			continue
		}

		category := roster.CategoryRegular
		if len(row) > 1 {
			if c, err := roster.ParseCategory(row[1]); err == nil {
				category = c
			}
		}

		tableRow := i + 2 // data row 0 sits at table row 2
		members = append(members, roster.Member{
			ID:                roster.NewMemberID(generation, tableRow),
			Name:              name,
			Category:          category,
			Row:               tableRow,
			AttendanceHistory: map[string]bool{},
		})
	}
	return members
}

// cellAt returns the cell at (row, col) from ragged data rows.
func cellAt(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) {
		return ""
	}
	if col < 0 || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}
