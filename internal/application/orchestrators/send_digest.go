// Package orchestrators coordinates multi-step write-side flows.
package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"rollcall/internal/adapters/email"
	"rollcall/internal/application/projections"
	"rollcall/internal/domain/attendance"
	"rollcall/internal/domain/roster"
	"rollcall/internal/domain/stats"
)

// ErrNoDigestData is returned when there is nothing worth mailing.
var ErrNoDigestData = errors.New("no members or meetings to report on")

// DigestSource provides the cached snapshots the digest reports on.
type DigestSource interface {
	Members() []roster.Member
	Records() []attendance.Record
}

// SendDigestInput carries input for the digest orchestrator.
type SendDigestInput struct {
	To   []string
	From string
	Now  time.Time // optional: if zero, time.Now() is used
}

// SendDigestDeps holds dependencies for SendDigest.
type SendDigestDeps struct {
	Source DigestSource
	Sender email.Sender
}

// ExecuteSendDigest renders the attendance digest and mails it.
// PRE: input.To is non-empty; deps are non-nil
// POST: One email sent containing overall, trend, and streak figures
func ExecuteSendDigest(ctx context.Context, input SendDigestInput, deps SendDigestDeps) error {
	if len(input.To) == 0 {
		return errors.New("digest needs at least one recipient")
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	members := deps.Source.Members()
	records := deps.Source.Records()
	if len(members) == 0 || len(records) == 0 {
		return ErrNoDigestData
	}

	markdown := renderDigestMarkdown(members, records)
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &html); err != nil {
		return fmt.Errorf("failed to render digest: %w", err)
	}

	subject := "Attendance digest – " + now.Format("Jan 2, 2006")
	result, err := deps.Sender.Send(ctx, email.SendRequest{
		To:      input.To,
		From:    input.From,
		Subject: subject,
		HTML:    html.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	slog.Info("digest_sent", "recipients", len(input.To), "message_id", result.MessageID)
	return nil
}

// renderDigestMarkdown builds the digest body.
func renderDigestMarkdown(members []roster.Member, records []attendance.Record) string {
	overall := projections.ComputeOverall(members, records)
	trend := projections.ComputeTrend(members, records, 0)
	perMember := projections.ComputeMemberStatistics(members, records)
	projections.SortMemberStatistics(perMember, stats.SortCurrentStreak)
	byCategory := projections.ComputeCategoryStatistics(members, records)

	var b strings.Builder
	b.WriteString("# Attendance digest\n\n")
	fmt.Fprintf(&b, "**%d members**, **%d meetings** tracked. ", overall.MemberCount, overall.MeetingCount)
	fmt.Fprintf(&b, "Average turnout %.1f (%.0f%%), most recent meeting %s.\n\n",
		overall.MeanAttendance, overall.MeanAttendancePct, overall.MostRecentDateKey)

	fmt.Fprintf(&b, "Attendance is **%s**", trend.Direction)
	if trend.Direction != stats.TrendStable {
		fmt.Fprintf(&b, " (%+.1f%% over the last %d meetings)", trend.ChangePct, len(trend.Points))
	}
	b.WriteString(".\n\n")

	b.WriteString("## Current streaks\n\n")
	top := perMember
	if len(top) > 5 {
		top = top[:5]
	}
	for _, s := range top {
		fmt.Fprintf(&b, "- %s (%s): %d in a row, best %d\n", s.Name, s.Category.Label(), s.CurrentStreak, s.LongestStreak)
	}

	b.WriteString("\n## By category\n\n")
	for _, c := range byCategory {
		fmt.Fprintf(&b, "- %s: %d members, %.0f%% average attendance\n", c.Category.Label(), c.MemberCount, c.MeanAttendancePct)
	}
	return b.String()
}
