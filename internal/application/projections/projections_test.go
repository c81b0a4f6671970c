package projections

import (
	"fmt"
	"math"
	"testing"

	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
)

func member(id, name string, cat roster.Category) roster.Member {
	return roster.Member{ID: id, Name: name, Category: cat, Row: 2}
}

func record(t *testing.T, dateKey string, presentIDs []string, members []roster.Member) attendance.Record {
	t.Helper()
	date, err := attendance.ParseDateKey(dateKey)
	if err != nil {
		t.Fatalf("bad fixture date %q: %v", dateKey, err)
	}
	present := make(map[string]bool, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = true
	}
	return attendance.NewRecord(date, attendance.FirstDateColumn, present, members)
}

// makeN builds n regular members with ids m000..m(n-1).
func makeN(n int) []roster.Member {
	out := make([]roster.Member, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("m%03d", i)
		out = append(out, member(id, "Member "+id, roster.CategoryRegular))
	}
	return out
}

func ids(members []roster.Member, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, members[i].ID)
	}
	return out
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
