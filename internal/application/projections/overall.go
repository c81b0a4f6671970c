// Package projections derives read-side statistics from the cached
// member and record snapshots. Every projection is a pure function of
// its inputs; the snapshots are immutable, so no locking happens here.
package projections

import (
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/domain/stats"
)

// ComputeOverall aggregates attendance across all visible meetings.
// PRE: records are sorted ascending by date
// POST: Returns zero-valued statistics when no meetings exist
func ComputeOverall(members []roster.Member, records []attendance.Record) stats.OverallStatistics {
	out := stats.OverallStatistics{
		MemberCount:  len(members),
		MeetingCount: len(records),
	}
	if len(records) == 0 {
		return out
	}

	sum := 0
	out.MinAttendance = records[0].PresentCount()
	for _, rec := range records {
		n := rec.PresentCount()
		sum += n
		if n > out.MaxAttendance {
			out.MaxAttendance = n
		}
		if n < out.MinAttendance {
			out.MinAttendance = n
		}
	}
	out.MeanAttendance = float64(sum) / float64(len(records))
	if len(members) > 0 {
		out.MeanAttendancePct = out.MeanAttendance / float64(len(members)) * 100
	}
	out.MostRecentDateKey = records[len(records)-1].DateKey
	return out
}
