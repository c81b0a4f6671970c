// Package web exposes the attendance cache over a JSON API.
package web

import (
	"context"
	"net/http"

	"rollcall/internal/adapters/email"
	"rollcall/internal/adapters/http/middleware"
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/perf"
)

// Repository defines the cache interface the web adapter needs.
type Repository interface {
	LoadAll(ctx context.Context) error
	RefreshMembers(ctx context.Context) error
	Save(ctx context.Context, dateKey string, presentIDs map[string]bool) error
	ToggleDateSkipped(ctx context.Context, dateKey string) error
	Members() []roster.Member
	Records() []attendance.Record
	SkippedDates() []string
	IsLoading() bool
	ErrorMessage() string
	MemberByID(id string) (roster.Member, bool)
	RecordByDateKey(dateKey string) (attendance.Record, bool)
	FilterMembersByName(query string) []roster.Member
	MembersByCategory() map[roster.Category][]roster.Member
	CategoryTrend(n int) map[roster.Category]float64
}

// SortPrefStore persists the member-statistics sort preference.
type SortPrefStore interface {
	GetSortKey(ctx context.Context) (string, error)
	SetSortKey(ctx context.Context, value string) error
}

// Deps holds the web adapter's dependencies. Sender, DigestTo, and
// DigestFrom are optional; without them the digest endpoint reports 503.
type Deps struct {
	Repo       Repository
	Prefs      SortPrefStore
	Collector  *perf.Collector
	Sender     email.Sender
	DigestTo   []string
	DigestFrom string
}

type server struct {
	deps Deps
}

// NewMux wires the JSON API routes and middleware.
// PRE: deps.Repo is non-nil
// POST: Returns a handler ready for ListenAndServe
func NewMux(deps Deps) http.Handler {
	s := &server{deps: deps}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return middleware.Chain(mux,
		middleware.Timing(deps.Collector),
	)
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/members", s.handleMembers)
	mux.HandleFunc("/api/members/by-category", s.handleMembersByCategory)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/skipped", s.handleSkipped)
	mux.HandleFunc("/api/skipped/toggle", s.handleSkippedToggle)
	mux.HandleFunc("/api/attendance", s.handleSaveAttendance)
	mux.HandleFunc("/api/load", s.handleLoad)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/stats/overall", s.handleStatsOverall)
	mux.HandleFunc("/api/stats/members", s.handleStatsMembers)
	mux.HandleFunc("/api/stats/categories", s.handleStatsCategories)
	mux.HandleFunc("/api/stats/trend", s.handleStatsTrend)
	mux.HandleFunc("/api/prefs/sort", s.handleSortPref)
	mux.HandleFunc("/api/digest", s.handleDigest)
	mux.HandleFunc("/api/perf", s.handlePerf)
}
