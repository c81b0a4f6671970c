package stats

import (
	"rollcall/internal/domain/roster"
)

// OverallStatistics aggregates attendance across all meetings.
// All fields are zero-valued when no meetings exist.
type OverallStatistics struct {
	MemberCount       int
	MeetingCount      int
	MeanAttendance    float64 // average present-count per meeting
	MeanAttendancePct float64 // MeanAttendance / MemberCount * 100
	MaxAttendance     int
	MinAttendance     int
	MostRecentDateKey string
}

// MemberStatistics carries per-member attendance figures.
type MemberStatistics struct {
	MemberID         string
	Name             string
	Category         roster.Category
	AttendancePct    float64
	MeetingsAttended int
	TotalMeetings    int
	CurrentStreak    int // consecutive presences counting back from the most recent meeting
	LongestStreak    int // best consecutive run anywhere in history
}

// CategoryStatistics aggregates attendance for one membership category.
type CategoryStatistics struct {
	Category          roster.Category
	MemberCount       int
	MeanAttendancePct float64
	MeetingsAttended  int // sum of per-member attended counts
}

// TrendPoint is one meeting's attendance percentage.
type TrendPoint struct {
	DateKey       string
	AttendancePct float64
}

// TrendDirection tags whether attendance is trending up, down, or flat.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// TrendAnalysis carries the attendance trend over a recent window.
type TrendAnalysis struct {
	Points    []TrendPoint
	Direction TrendDirection
	ChangePct float64
}

// SortKey selects the ordering of a member-statistics list.
type SortKey string

// The seven enumerated sort keys.
const (
	SortNameAsc       SortKey = "name_asc"
	SortNameDesc      SortKey = "name_desc"
	SortPercentAsc    SortKey = "percent_asc"
	SortPercentDesc   SortKey = "percent_desc"
	SortCurrentStreak SortKey = "current_streak"
	SortLongestStreak SortKey = "longest_streak"
	SortCategory      SortKey = "category"
)

// DefaultSortKey is used when no preference has been persisted.
const DefaultSortKey = SortNameAsc

// sortKeys lists every valid SortKey.
var sortKeys = []SortKey{
	SortNameAsc,
	SortNameDesc,
	SortPercentAsc,
	SortPercentDesc,
	SortCurrentStreak,
	SortLongestStreak,
	SortCategory,
}

// SortKeys returns the enumerated sort keys.
func SortKeys() []SortKey {
	out := make([]SortKey, len(sortKeys))
	copy(out, sortKeys)
	return out
}

// ParseSortKey validates a raw sort-key string.
// PRE: none
// POST: Returns the key and true, or DefaultSortKey and false for
// unrecognised input
func ParseSortKey(raw string) (SortKey, bool) {
	for _, k := range sortKeys {
		if SortKey(raw) == k {
			return k, true
		}
	}
	return DefaultSortKey, false
}
