package projections

import (
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/domain/stats"
)

// ComputeCategoryStatistics aggregates per-member figures into one row
// per membership category, in canonical category order.
// PRE: records are sorted ascending by date
// POST: Categories without members are omitted
func ComputeCategoryStatistics(members []roster.Member, records []attendance.Record) []stats.CategoryStatistics {
	perMember := ComputeMemberStatistics(members, records)

	byCategory := make(map[roster.Category]*stats.CategoryStatistics)
	for _, s := range perMember {
		agg, ok := byCategory[s.Category]
		if !ok {
			agg = &stats.CategoryStatistics{Category: s.Category}
			byCategory[s.Category] = agg
		}
		agg.MemberCount++
		agg.MeanAttendancePct += s.AttendancePct
		agg.MeetingsAttended += s.MeetingsAttended
	}

	out := make([]stats.CategoryStatistics, 0, len(byCategory))
	for _, cat := range roster.Categories() {
		agg, ok := byCategory[cat]
		if !ok {
			continue
		}
		agg.MeanAttendancePct /= float64(agg.MemberCount)
		out = append(out, *agg)
	}
	return out
}
