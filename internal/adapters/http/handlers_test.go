package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rollcall/internal/adapters/email"
	"rollcall/internal/adapters/sheets"
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
)

// fakeRepo implements Repository over fixed snapshots.
type fakeRepo struct {
	members  []roster.Member
	records  []attendance.Record
	skipped  []string
	errMsg   string
	loadErr  error
	saveErr  error
	saved    []string // date keys passed to Save
	loads    int
	refreshs int
	toggled  []string
}

func (f *fakeRepo) LoadAll(_ context.Context) error {
	f.loads++
	return f.loadErr
}

func (f *fakeRepo) RefreshMembers(_ context.Context) error {
	f.refreshs++
	return f.loadErr
}

func (f *fakeRepo) Save(_ context.Context, dateKey string, _ map[string]bool) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, dateKey)
	return nil
}

func (f *fakeRepo) ToggleDateSkipped(_ context.Context, dateKey string) error {
	f.toggled = append(f.toggled, dateKey)
	return nil
}

func (f *fakeRepo) Members() []roster.Member     { return f.members }
func (f *fakeRepo) Records() []attendance.Record { return f.records }
func (f *fakeRepo) SkippedDates() []string       { return f.skipped }
func (f *fakeRepo) IsLoading() bool              { return false }
func (f *fakeRepo) ErrorMessage() string         { return f.errMsg }

func (f *fakeRepo) MemberByID(id string) (roster.Member, bool) {
	for _, m := range f.members {
		if m.ID == id {
			return m, true
		}
	}
	return roster.Member{}, false
}

func (f *fakeRepo) RecordByDateKey(dateKey string) (attendance.Record, bool) {
	for _, rec := range f.records {
		if rec.DateKey == dateKey {
			return rec, true
		}
	}
	return attendance.Record{}, false
}

func (f *fakeRepo) FilterMembersByName(query string) []roster.Member {
	if query == "" {
		return f.members
	}
	var out []roster.Member
	for _, m := range f.members {
		if strings.Contains(strings.ToLower(m.Name), strings.ToLower(query)) {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeRepo) MembersByCategory() map[roster.Category][]roster.Member {
	out := make(map[roster.Category][]roster.Member)
	for _, m := range f.members {
		out[m.Category] = append(out[m.Category], m)
	}
	return out
}

func (f *fakeRepo) CategoryTrend(_ int) map[roster.Category]float64 {
	return map[roster.Category]float64{roster.CategoryRegular: 80}
}

type fakeSortPrefs struct {
	sortKey string
}

func (f *fakeSortPrefs) GetSortKey(_ context.Context) (string, error) { return f.sortKey, nil }
func (f *fakeSortPrefs) SetSortKey(_ context.Context, v string) error {
	f.sortKey = v
	return nil
}

type fakeDigestSender struct {
	sent int
}

func (f *fakeDigestSender) Send(_ context.Context, _ email.SendRequest) (email.SendResult, error) {
	f.sent++
	return email.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func fixtureRepo(t *testing.T) *fakeRepo {
	t.Helper()
	members := []roster.Member{
		{ID: "a", Name: "Alice", Category: roster.CategoryRegular, Row: 2, AttendanceHistory: map[string]bool{"11/6/25": true}},
		{ID: "b", Name: "Bob", Category: roster.CategoryStudent, Row: 3, AttendanceHistory: map[string]bool{}},
	}
	date, err := attendance.ParseDateKey("11/6/25")
	if err != nil {
		t.Fatalf("bad fixture date: %v", err)
	}
	rec := attendance.NewRecord(date, attendance.FirstDateColumn, map[string]bool{"a": true}, members)
	return &fakeRepo{members: members, records: []attendance.Record{rec}}
}

func newTestServer(t *testing.T, repo *fakeRepo) (http.Handler, *fakeSortPrefs, *fakeDigestSender) {
	t.Helper()
	prefsStore := &fakeSortPrefs{}
	sender := &fakeDigestSender{}
	mux := NewMux(Deps{
		Repo:       repo,
		Prefs:      prefsStore,
		Sender:     sender,
		DigestTo:   []string{"board@example.org"},
		DigestFrom: "Rollcall <noreply@example.org>",
	})
	return mux, prefsStore, sender
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleMembers(t *testing.T) {
	h, _, _ := newTestServer(t, fixtureRepo(t))

	rr := doJSON(t, h, "GET", "/api/members", "")
	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	var list []memberDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alice" || list[0].Attended != 1 {
		t.Errorf("members = %+v", list)
	}

	rr = doJSON(t, h, "GET", "/api/members?q=bo", "")
	list = nil
	json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Name != "Bob" {
		t.Errorf("filtered = %+v", list)
	}

	rr = doJSON(t, h, "GET", "/api/members?category=STU", "")
	list = nil
	json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Category != "STU" {
		t.Errorf("by category = %+v", list)
	}

	if rr := doJSON(t, h, "GET", "/api/members?category=NOPE", ""); rr.Code != 400 {
		t.Errorf("unknown category status = %d, want 400", rr.Code)
	}

	if rr := doJSON(t, h, "GET", "/api/members?id=b", ""); rr.Code != 200 {
		t.Errorf("by id status = %d", rr.Code)
	}
	if rr := doJSON(t, h, "GET", "/api/members?id=zzz", ""); rr.Code != 404 {
		t.Errorf("missing id status = %d, want 404", rr.Code)
	}
}

func TestHandleRecords(t *testing.T) {
	h, _, _ := newTestServer(t, fixtureRepo(t))

	rr := doJSON(t, h, "GET", "/api/records", "")
	var list []recordDTO
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].DateKey != "11/6/25" || list[0].PresentCount != 1 {
		t.Errorf("records = %+v", list)
	}
	if list[0].CountByCategory["REG"] != 1 {
		t.Errorf("category counts = %v", list[0].CountByCategory)
	}

	if rr := doJSON(t, h, "GET", "/api/records?date=11/6/25", ""); rr.Code != 200 {
		t.Errorf("single record status = %d", rr.Code)
	}
	if rr := doJSON(t, h, "GET", "/api/records?date=1/1/25", ""); rr.Code != 404 {
		t.Errorf("missing record status = %d, want 404", rr.Code)
	}
}

func TestHandleSaveAttendance(t *testing.T) {
	repo := fixtureRepo(t)
	h, _, _ := newTestServer(t, repo)

	rr := doJSON(t, h, "POST", "/api/attendance", `{"date_key":"11/6/25","present_ids":["a","b"]}`)
	if rr.Code != 200 {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if len(repo.saved) != 1 || repo.saved[0] != "11/6/25" {
		t.Errorf("saved = %v", repo.saved)
	}

	if rr := doJSON(t, h, "POST", "/api/attendance", `{}`); rr.Code != 400 {
		t.Errorf("missing date_key status = %d, want 400", rr.Code)
	}
	if rr := doJSON(t, h, "GET", "/api/attendance", ""); rr.Code != 405 {
		t.Errorf("GET status = %d, want 405", rr.Code)
	}
}

func TestHandleSaveAttendance_ErrorMapping(t *testing.T) {
	repo := fixtureRepo(t)
	repo.saveErr = fmt.Errorf("%w: dial tcp", sheets.ErrNetworkUnavailable)
	repo.errMsg = "No network connection. Check your connection and try again."
	h, _, _ := newTestServer(t, repo)

	rr := doJSON(t, h, "POST", "/api/attendance", `{"date_key":"11/6/25"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No network connection") {
		t.Errorf("body = %q, want the user-facing message", rr.Body.String())
	}
}

func TestHandleSkippedToggle(t *testing.T) {
	repo := fixtureRepo(t)
	h, _, _ := newTestServer(t, repo)

	rr := doJSON(t, h, "POST", "/api/skipped/toggle", `{"date_key":"11/6/25"}`)
	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(repo.toggled) != 1 {
		t.Errorf("toggled = %v", repo.toggled)
	}

	if rr := doJSON(t, h, "POST", "/api/skipped/toggle", `{"date_key":"not-a-date"}`); rr.Code != 400 {
		t.Errorf("malformed key status = %d, want 400", rr.Code)
	}
}

func TestHandleLoadAndRefresh(t *testing.T) {
	repo := fixtureRepo(t)
	h, _, _ := newTestServer(t, repo)

	if rr := doJSON(t, h, "POST", "/api/load", ""); rr.Code != 200 {
		t.Errorf("load status = %d", rr.Code)
	}
	if rr := doJSON(t, h, "POST", "/api/refresh", ""); rr.Code != 200 {
		t.Errorf("refresh status = %d", rr.Code)
	}
	if repo.loads != 1 || repo.refreshs != 1 {
		t.Errorf("loads/refreshes = %d/%d", repo.loads, repo.refreshs)
	}

	repo.loadErr = fmt.Errorf("%w: expired token", sheets.ErrAuthExpired)
	if rr := doJSON(t, h, "POST", "/api/load", ""); rr.Code != 401 {
		t.Errorf("auth failure status = %d, want 401", rr.Code)
	}
}

func TestHandleStatsMembers_SortResolution(t *testing.T) {
	repo := fixtureRepo(t)
	h, prefsStore, _ := newTestServer(t, repo)

	// Query parameter wins.
	rr := doJSON(t, h, "GET", "/api/stats/members?sort=percent_desc", "")
	var body struct {
		Sort string `json:"sort"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Sort != "percent_desc" {
		t.Errorf("sort = %q, want percent_desc", body.Sort)
	}

	// Persisted preference applies when no parameter is given.
	prefsStore.sortKey = "current_streak"
	rr = doJSON(t, h, "GET", "/api/stats/members", "")
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Sort != "current_streak" {
		t.Errorf("sort = %q, want persisted current_streak", body.Sort)
	}

	if rr := doJSON(t, h, "GET", "/api/stats/members?sort=bogus", ""); rr.Code != 400 {
		t.Errorf("bogus sort status = %d, want 400", rr.Code)
	}
}

func TestHandleStatsEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t, fixtureRepo(t))

	rr := doJSON(t, h, "GET", "/api/stats/overall", "")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "MeetingCount") {
		t.Errorf("overall: %d %s", rr.Code, rr.Body.String())
	}
	if rr := doJSON(t, h, "GET", "/api/stats/categories", ""); rr.Code != 200 {
		t.Errorf("categories status = %d", rr.Code)
	}
	if rr := doJSON(t, h, "GET", "/api/stats/trend", ""); rr.Code != 200 {
		t.Errorf("trend status = %d", rr.Code)
	}
	if rr := doJSON(t, h, "GET", "/api/stats/trend?window=1", ""); rr.Code != 400 {
		t.Errorf("window=1 status = %d, want 400", rr.Code)
	}
}

func TestHandleSortPref(t *testing.T) {
	h, prefsStore, _ := newTestServer(t, fixtureRepo(t))

	rr := doJSON(t, h, "PUT", "/api/prefs/sort", `{"sort":"longest_streak"}`)
	if rr.Code != 200 {
		t.Fatalf("put status = %d", rr.Code)
	}
	if prefsStore.sortKey != "longest_streak" {
		t.Errorf("persisted = %q", prefsStore.sortKey)
	}

	if rr := doJSON(t, h, "PUT", "/api/prefs/sort", `{"sort":"bogus"}`); rr.Code != 400 {
		t.Errorf("bogus key status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, "GET", "/api/prefs/sort", "")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "longest_streak") {
		t.Errorf("get: %d %s", rr.Code, rr.Body.String())
	}
}

func TestHandleDigest(t *testing.T) {
	h, _, sender := newTestServer(t, fixtureRepo(t))

	rr := doJSON(t, h, "POST", "/api/digest", "")
	if rr.Code != 200 {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if sender.sent != 1 {
		t.Errorf("sends = %d, want 1", sender.sent)
	}

	// Unconfigured digest reports service unavailable.
	bare := NewMux(Deps{Repo: fixtureRepo(t)})
	if rr := doJSON(t, bare, "POST", "/api/digest", ""); rr.Code != 503 {
		t.Errorf("unconfigured status = %d, want 503", rr.Code)
	}
}

func TestHandlePerf(t *testing.T) {
	// No collector configured on the test server.
	h, _, _ := newTestServer(t, fixtureRepo(t))
	if rr := doJSON(t, h, "GET", "/api/perf", ""); rr.Code != 503 {
		t.Errorf("no-collector status = %d, want 503", rr.Code)
	}
}

func TestHandleState(t *testing.T) {
	repo := fixtureRepo(t)
	repo.errMsg = "boom"
	h, _, _ := newTestServer(t, repo)

	rr := doJSON(t, h, "GET", "/api/state", "")
	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Loading bool   `json:"loading"`
		Error   string `json:"error"`
		Members int    `json:"members"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Error != "boom" || body.Members != 2 {
		t.Errorf("state = %+v", body)
	}
}
