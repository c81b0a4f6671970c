package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"rollcall/internal/adapters/sheets"
	"rollcall/internal/application/orchestrators"
	"rollcall/internal/application/projections"
	"rollcall/internal/application/repository"
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/domain/stats"
)

// memberDTO is the JSON shape of a member.
type memberDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	Row           int    `json:"row"`
	Attended      int    `json:"attended"`
}

// recordDTO is the JSON shape of one meeting record.
type recordDTO struct {
	DateKey         string         `json:"date_key"`
	Date            string         `json:"date"` // ISO 8601
	PresentIDs      []string       `json:"present_ids"`
	PresentCount    int            `json:"present_count"`
	CountByCategory map[string]int `json:"count_by_category"`
}

func toMemberDTO(m roster.Member) memberDTO {
	return memberDTO{
		ID:            m.ID,
		Name:          m.Name,
		Category:      string(m.Category),
		CategoryLabel: m.Category.Label(),
		Row:           m.Row,
		Attended:      m.AttendedCount(),
	}
}

func toRecordDTO(rec attendance.Record) recordDTO {
	ids := make([]string, 0, len(rec.PresentIDs))
	for id := range rec.PresentIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	counts := make(map[string]int, len(rec.CountByCategory))
	for cat, n := range rec.CountByCategory {
		counts[string(cat)] = n
	}
	return recordDTO{
		DateKey:         rec.DateKey,
		Date:            rec.Date.Format(time.RFC3339),
		PresentIDs:      ids,
		PresentCount:    rec.PresentCount(),
		CountByCategory: counts,
	}
}

// writeJSON serialises v with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a repository error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sheets.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, sheets.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, sheets.ErrSheetNotFound):
		return http.StatusNotFound
	case errors.Is(err, sheets.ErrNetworkUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, repository.ErrNoMembers):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrBadDateKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleState reports the cache's loading flag and last error message.
func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"loading": s.deps.Repo.IsLoading(),
		"error":   s.deps.Repo.ErrorMessage(),
		"members": len(s.deps.Repo.Members()),
		"records": len(s.deps.Repo.Records()),
		"skipped": s.deps.Repo.SkippedDates(),
	})
}

// handleMembers handles GET /api/members with optional ?q= and
// ?category= filters and ?id= single lookup.
func (s *server) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		m, ok := s.deps.Repo.MemberByID(id)
		if !ok {
			http.Error(w, "member not found", http.StatusNotFound)
			return
		}
		writeJSON(w, toMemberDTO(m))
		return
	}

	members := s.deps.Repo.FilterMembersByName(r.URL.Query().Get("q"))

	if raw := r.URL.Query().Get("category"); raw != "" {
		cat, err := roster.ParseCategory(raw)
		if err != nil {
			http.Error(w, "unknown category code", http.StatusBadRequest)
			return
		}
		filtered := make([]roster.Member, 0, len(members))
		for _, m := range members {
			if m.Category == cat {
				filtered = append(filtered, m)
			}
		}
		members = filtered
	}

	out := make([]memberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberDTO(m))
	}
	writeJSON(w, out)
}

func (s *server) handleMembersByCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	groups := s.deps.Repo.MembersByCategory()
	out := make(map[string][]memberDTO, len(groups))
	for cat, members := range groups {
		dtos := make([]memberDTO, 0, len(members))
		for _, m := range members {
			dtos = append(dtos, toMemberDTO(m))
		}
		out[string(cat)] = dtos
	}
	writeJSON(w, out)
}

// handleRecords handles GET /api/records, optionally narrowed with
// ?date=<date-key>.
func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if key := r.URL.Query().Get("date"); key != "" {
		rec, ok := s.deps.Repo.RecordByDateKey(key)
		if !ok {
			http.Error(w, "no meeting on that date", http.StatusNotFound)
			return
		}
		writeJSON(w, toRecordDTO(rec))
		return
	}

	records := s.deps.Repo.Records()
	out := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordDTO(rec))
	}
	writeJSON(w, out)
}

func (s *server) handleSkipped(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.deps.Repo.SkippedDates())
}

func (s *server) handleSkippedToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		DateKey string `json:"date_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DateKey == "" {
		http.Error(w, "date_key is required", http.StatusBadRequest)
		return
	}
	if _, err := attendance.ParseDateKey(body.DateKey); err != nil {
		http.Error(w, "malformed date_key", http.StatusBadRequest)
		return
	}
	if err := s.deps.Repo.ToggleDateSkipped(r.Context(), body.DateKey); err != nil {
		http.Error(w, s.deps.Repo.ErrorMessage(), statusFor(err))
		return
	}
	writeJSON(w, s.deps.Repo.SkippedDates())
}

// handleSaveAttendance handles POST /api/attendance: one meeting's
// presence marks in a single atomic write.
func (s *server) handleSaveAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		DateKey    string   `json:"date_key"`
		PresentIDs []string `json:"present_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DateKey == "" {
		http.Error(w, "date_key is required", http.StatusBadRequest)
		return
	}

	present := make(map[string]bool, len(body.PresentIDs))
	for _, id := range body.PresentIDs {
		present[id] = true
	}

	if err := s.deps.Repo.Save(r.Context(), body.DateKey, present); err != nil {
		http.Error(w, s.deps.Repo.ErrorMessage(), statusFor(err))
		return
	}

	rec, _ := s.deps.Repo.RecordByDateKey(body.DateKey)
	writeJSON(w, toRecordDTO(rec))
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.Repo.LoadAll(r.Context()); err != nil {
		http.Error(w, s.deps.Repo.ErrorMessage(), statusFor(err))
		return
	}
	writeJSON(w, map[string]int{
		"members": len(s.deps.Repo.Members()),
		"records": len(s.deps.Repo.Records()),
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.deps.Repo.RefreshMembers(r.Context()); err != nil {
		http.Error(w, s.deps.Repo.ErrorMessage(), statusFor(err))
		return
	}
	writeJSON(w, map[string]int{"members": len(s.deps.Repo.Members())})
}

func (s *server) handleStatsOverall(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, projections.ComputeOverall(s.deps.Repo.Members(), s.deps.Repo.Records()))
}

// handleStatsMembers handles GET /api/stats/members. The sort order
// comes from ?sort= when present, else the persisted preference.
func (s *server) handleStatsMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	key := stats.DefaultSortKey
	if raw := r.URL.Query().Get("sort"); raw != "" {
		parsed, ok := stats.ParseSortKey(raw)
		if !ok {
			http.Error(w, "unknown sort key", http.StatusBadRequest)
			return
		}
		key = parsed
	} else if s.deps.Prefs != nil {
		if saved, err := s.deps.Prefs.GetSortKey(r.Context()); err == nil && saved != "" {
			if parsed, ok := stats.ParseSortKey(saved); ok {
				key = parsed
			}
		}
	}

	list := projections.ComputeMemberStatistics(s.deps.Repo.Members(), s.deps.Repo.Records())
	projections.SortMemberStatistics(list, key)
	writeJSON(w, map[string]any{"sort": key, "members": list})
}

func (s *server) handleStatsCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"categories":   projections.ComputeCategoryStatistics(s.deps.Repo.Members(), s.deps.Repo.Records()),
		"recent_pct":   s.deps.Repo.CategoryTrend(projections.DefaultTrendWindow),
		"recent_count": projections.DefaultTrendWindow,
	})
}

func (s *server) handleStatsTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			http.Error(w, "window must be an integer >= 2", http.StatusBadRequest)
			return
		}
		window = n
	}
	writeJSON(w, projections.ComputeTrend(s.deps.Repo.Members(), s.deps.Repo.Records(), window))
}

// handleSortPref handles GET and PUT on the persisted sort preference.
func (s *server) handleSortPref(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prefs == nil {
		http.Error(w, "preferences are not configured", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case "GET":
		saved, err := s.deps.Prefs.GetSortKey(r.Context())
		if err != nil {
			http.Error(w, "failed to read preference", http.StatusInternalServerError)
			return
		}
		key, _ := stats.ParseSortKey(saved)
		writeJSON(w, map[string]any{"sort": key})
	case "PUT":
		var body struct {
			Sort string `json:"sort"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}
		key, ok := stats.ParseSortKey(body.Sort)
		if !ok {
			http.Error(w, "unknown sort key", http.StatusBadRequest)
			return
		}
		if err := s.deps.Prefs.SetSortKey(r.Context(), string(key)); err != nil {
			http.Error(w, "failed to save preference", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"sort": key})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleDigest triggers the email digest on demand.
func (s *server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Sender == nil || len(s.deps.DigestTo) == 0 {
		http.Error(w, "digest email is not configured", http.StatusServiceUnavailable)
		return
	}

	err := orchestrators.ExecuteSendDigest(r.Context(), orchestrators.SendDigestInput{
		To:   s.deps.DigestTo,
		From: s.deps.DigestFrom,
	}, orchestrators.SendDigestDeps{
		Source: s.deps.Repo,
		Sender: s.deps.Sender,
	})
	if errors.Is(err, orchestrators.ErrNoDigestData) {
		http.Error(w, "nothing to report yet", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "failed to send digest", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"sent": true, "recipients": len(s.deps.DigestTo)})
}

// handlePerf exposes the timing collector's aggregated snapshot.
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Collector == nil {
		http.Error(w, "perf collection is not enabled", http.StatusServiceUnavailable)
		return
	}

	minutes := 60
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			minutes = n
		}
	}
	top := 10
	if raw := r.URL.Query().Get("top"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			top = n
		}
	}

	since := time.Now().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, s.deps.Collector.Snapshot(since, top))
}
