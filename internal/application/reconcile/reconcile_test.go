package reconcile

import (
	"testing"
	"time"

	"rollcall/internal/domain/roster"
)

var testNow = time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)

func testMembers() []roster.Member {
	return MembersFromRows([][]string{
		{"Alice", "REG"},
		{"Bob", "STU"},
	}, "g1")
}

// TestReconcile_Basic parses a small grid into members and records.
func TestReconcile_Basic(t *testing.T) {
	res := Reconcile(Input{
		Header: []string{"Name", "Category", "10/23/25", "10/30/25"},
		Rows: [][]string{
			{"Alice", "REG", "x", "X"},
			{"Bob", "STU", "", "x"},
		},
		Members: testMembers(),
		Now:     testNow,
	})

	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}
	if res.Records[0].DateKey != "10/23/25" || res.Records[1].DateKey != "10/30/25" {
		t.Fatalf("record order: %q, %q", res.Records[0].DateKey, res.Records[1].DateKey)
	}
	if res.Records[0].PresentCount() != 1 {
		t.Errorf("10/23 present = %d, want 1", res.Records[0].PresentCount())
	}
	if res.Records[1].PresentCount() != 2 {
		t.Errorf("10/30 present = %d, want 2", res.Records[1].PresentCount())
	}

	alice := res.Members[0]
	if !alice.Attended("10/23/25") || !alice.Attended("10/30/25") {
		t.Errorf("alice history = %v", alice.AttendanceHistory)
	}
	bob := res.Members[1]
	if bob.Attended("10/23/25") {
		t.Error("bob should be absent on 10/23")
	}
}

// TestReconcile_DedupKeepsLeftmost verifies two renderings of the same
// date produce exactly one record, keyed on the leftmost column.
func TestReconcile_DedupKeepsLeftmost(t *testing.T) {
	res := Reconcile(Input{
		Header: []string{"Name", "Category", "10/30/25", "10/30/2025"},
		Rows: [][]string{
			{"Alice", "REG", "x", ""},
			{"Bob", "STU", "", "x"},
		},
		Members: testMembers(),
		Now:     testNow,
	})

	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	r := res.Records[0]
	if r.Column != 2 {
		t.Errorf("kept column = %d, want leftmost (2)", r.Column)
	}
	// The leftmost column's marks win: Alice present, Bob absent.
	if !res.Members[0].Attended("10/30/25") {
		t.Error("alice should be present (leftmost column)")
	}
	if res.Members[1].Attended("10/30/25") {
		t.Error("bob's mark in the dropped duplicate column should not count")
	}
}

// TestReconcile_FutureDateExcluded verifies dates after today never
// produce a record nor touch any history.
func TestReconcile_FutureDateExcluded(t *testing.T) {
	res := Reconcile(Input{
		Header: []string{"Name", "Category", "11/6/25", "12/25/25"},
		Rows: [][]string{
			{"Alice", "REG", "x", "x"},
		},
		Members: MembersFromRows([][]string{{"Alice", "REG"}}, "g1"),
		Now:     testNow,
	})

	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	if res.Records[0].DateKey != "11/6/25" {
		t.Errorf("kept %q, want 11/6/25", res.Records[0].DateKey)
	}
	if _, ok := res.Members[0].AttendanceHistory["12/25/25"]; ok {
		t.Error("future date leaked into attendance history")
	}
}

// TestReconcile_TodayIncluded verifies a meeting dated today is kept
// (only strictly future dates are dropped).
func TestReconcile_TodayIncluded(t *testing.T) {
	res := Reconcile(Input{
		Header:  []string{"Name", "Category", "11/10/25"},
		Rows:    [][]string{{"Alice", "REG", "x"}},
		Members: MembersFromRows([][]string{{"Alice", "REG"}}, "g1"),
		Now:     testNow,
	})
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1 (today is a valid meeting)", len(res.Records))
	}
}

// TestReconcile_EmptyHeader verifies an empty sheet yields an empty
// result, not an error.
func TestReconcile_EmptyHeader(t *testing.T) {
	res := Reconcile(Input{Members: testMembers(), Now: testNow})
	if len(res.Members) != 0 || len(res.Records) != 0 {
		t.Fatalf("empty sheet: members=%d records=%d, want 0/0", len(res.Members), len(res.Records))
	}
}

// TestReconcile_OrphanRowSkipped verifies a member row missing from the
// grid contributes absences, not errors.
func TestReconcile_OrphanRowSkipped(t *testing.T) {
	members := MembersFromRows([][]string{
		{"Alice", "REG"},
		{"Bob", "STU"},
	}, "g1")

	res := Reconcile(Input{
		Header:  []string{"Name", "Category", "11/6/25"},
		Rows:    [][]string{{"Alice", "REG", "x"}}, // Bob's row absent
		Members: members,
		Now:     testNow,
	})

	if len(res.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(res.Members))
	}
	if res.Members[1].Attended("11/6/25") {
		t.Error("orphan row should read as absent")
	}
}

// TestReconcile_InputNotMutated verifies copy-on-write at the
// reconciliation boundary.
func TestReconcile_InputNotMutated(t *testing.T) {
	members := testMembers()
	before := members[0].AttendanceHistory

	Reconcile(Input{
		Header:  []string{"Name", "Category", "11/6/25"},
		Rows:    [][]string{{"Alice", "REG", "x"}, {"Bob", "STU", ""}},
		Members: members,
		Now:     testNow,
	})

	if len(before) != 0 {
		t.Error("input member history was mutated")
	}
	if len(members[0].AttendanceHistory) != 0 {
		t.Error("input member slice element was mutated")
	}
}

// TestMembersFromRows covers name/category parsing rules.
func TestMembersFromRows(t *testing.T) {
	members := MembersFromRows([][]string{
		{"Alice", "REG"},
		{"", "STU"},       // no name: skipped
		{"Carol", "WHAT"}, // bad code: defaults to Regular
		{"Dan"},           // no category cell: defaults to Regular
	}, "g1")

	if len(members) != 3 {
		t.Fatalf("members = %d, want 3", len(members))
	}
	if members[0].Row != 2 {
		t.Errorf("alice row = %d, want 2", members[0].Row)
	}
	if members[1].Name != "Carol" || members[1].Category != roster.CategoryRegular {
		t.Errorf("carol = %+v, want Regular fallback", members[1])
	}
	if members[2].Row != 5 {
		t.Errorf("dan row = %d, want 5 (skipped row keeps its table position)", members[2].Row)
	}
	if members[0].ID != roster.NewMemberID("g1", 2) {
		t.Errorf("id = %q, want row-derived id", members[0].ID)
	}
}
