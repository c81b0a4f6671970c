package projections

import (
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/domain/stats"
)

// DefaultTrendWindow is the number of most recent meetings a trend
// analysis looks at.
const DefaultTrendWindow = 10

// trendThresholdPct separates stable from improving/declining. The
// change must strictly exceed the threshold to leave stable.
const trendThresholdPct = 5.0

// ComputeTrend analyses the attendance percentage over the last window
// meetings.
// PRE: records are sorted ascending by date
// POST: Fewer than two points yields a stable trend with zero change
func ComputeTrend(members []roster.Member, records []attendance.Record, window int) stats.TrendAnalysis {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if len(records) > window {
		records = records[len(records)-window:]
	}

	points := make([]stats.TrendPoint, 0, len(records))
	for _, rec := range records {
		pct := 0.0
		if len(members) > 0 {
			pct = float64(rec.PresentCount()) / float64(len(members)) * 100
		}
		points = append(points, stats.TrendPoint{DateKey: rec.DateKey, AttendancePct: pct})
	}

	out := stats.TrendAnalysis{Points: points, Direction: stats.TrendStable}
	if len(points) < 2 {
		return out
	}

	start := points[0].AttendancePct
	end := points[len(points)-1].AttendancePct
	// A zero start has no meaningful relative change; the trend stays
	// stable no matter where the window ends.
	if start != 0 {
		out.ChangePct = (end - start) / start * 100
	}

	switch {
	case out.ChangePct > trendThresholdPct:
		out.Direction = stats.TrendImproving
	case out.ChangePct < -trendThresholdPct:
		out.Direction = stats.TrendDeclining
	}
	return out
}
