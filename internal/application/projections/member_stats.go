package projections

import (
	"sort"
	"strings"

	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/domain/stats"
)

// ComputeMemberStatistics derives per-member attendance figures,
// including the streak pair.
// PRE: records are sorted ascending by date
// POST: One entry per member, in input order; streaks count consecutive
// presences over the visible meeting sequence
func ComputeMemberStatistics(members []roster.Member, records []attendance.Record) []stats.MemberStatistics {
	out := make([]stats.MemberStatistics, 0, len(members))
	for _, m := range members {
		s := stats.MemberStatistics{
			MemberID:      m.ID,
			Name:          m.Name,
			Category:      m.Category,
			TotalMeetings: len(records),
		}

		run := 0
		for _, rec := range records {
			if rec.Present(m.ID) {
				s.MeetingsAttended++
				run++
				if run > s.LongestStreak {
					s.LongestStreak = run
				}
			} else {
				run = 0
			}
		}
		// The ascending walk ends at the most recent meeting, so the
		// final run is exactly the current streak.
		s.CurrentStreak = run

		if s.TotalMeetings > 0 {
			s.AttendancePct = float64(s.MeetingsAttended) / float64(s.TotalMeetings) * 100
		}
		out = append(out, s)
	}
	return out
}

// SortMemberStatistics orders the list in place by the given key.
// Streak and percentage keys sort descending with name as tie-break;
// the category key uses the canonical category order.
func SortMemberStatistics(list []stats.MemberStatistics, key stats.SortKey) {
	byName := func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	}
	sort.SliceStable(list, func(i, j int) bool {
		switch key {
		case stats.SortNameDesc:
			return strings.ToLower(list[i].Name) > strings.ToLower(list[j].Name)
		case stats.SortPercentAsc:
			if list[i].AttendancePct != list[j].AttendancePct {
				return list[i].AttendancePct < list[j].AttendancePct
			}
			return byName(i, j)
		case stats.SortPercentDesc:
			if list[i].AttendancePct != list[j].AttendancePct {
				return list[i].AttendancePct > list[j].AttendancePct
			}
			return byName(i, j)
		case stats.SortCurrentStreak:
			if list[i].CurrentStreak != list[j].CurrentStreak {
				return list[i].CurrentStreak > list[j].CurrentStreak
			}
			return byName(i, j)
		case stats.SortLongestStreak:
			if list[i].LongestStreak != list[j].LongestStreak {
				return list[i].LongestStreak > list[j].LongestStreak
			}
			return byName(i, j)
		case stats.SortCategory:
			ri, rj := roster.CategoryRank(list[i].Category), roster.CategoryRank(list[j].Category)
			if ri != rj {
				return ri < rj
			}
			return byName(i, j)
		default: // SortNameAsc
			return byName(i, j)
		}
	})
}
