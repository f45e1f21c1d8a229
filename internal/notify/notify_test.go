package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

type fakeLister struct {
	issues []models.UrgentIssue
	err    error
	calls  int
}

func (f *fakeLister) ListDueIssues(ctx context.Context, threshold int, includeOverdue bool) ([]models.UrgentIssue, error) {
	f.calls++
	return f.issues, f.err
}

type fakeSink struct {
	ts    string
	err   error
	calls int
	texts []string
}

func (f *fakeSink) PostMessage(ctx context.Context, channel, text string) (string, error) {
	f.calls++
	f.texts = append(f.texts, text)
	return f.ts, f.err
}

func testNotifier(lister UrgentLister, sink Sink, now time.Time) *Notifier {
	n := NewNotifier(lister, sink, config.NotifyConfig{
		DaysThreshold:      3,
		SkipWeekendHoliday: true,
		Holidays:           []string{"01-01", "08-11"},
	})
	n.now = func() time.Time { return now }
	return n
}

func defaultParams() Params {
	return Params{DaysThreshold: 3, ChannelID: "C123", SkipWeekendHoliday: true, Variant: VariantUpcoming}
}

func urgent(key string, days int) models.UrgentIssue {
	return models.UrgentIssue{
		ProjectName:  "プロジェクトA",
		IssueKey:     key,
		Summary:      "s-" + key,
		DueDate:      "2026-08-20",
		DaysUntilDue: days,
		URL:          "https://space.backlog.jp/view/" + key,
	}
}

func TestRunGateSkips(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{"saturday", time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)},
		{"holiday", time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{issues: []models.UrgentIssue{urgent("PROJ-1", 1)}}
			sink := &fakeSink{ts: "1724300000.000100"}
			n := testNotifier(lister, sink, tt.now)

			result := n.Run(context.Background(), defaultParams())

			if !result.Skipped || !result.Success {
				t.Errorf("expected skipped success, got %+v", result)
			}
			// The gate trips before any outbound call.
			if lister.calls != 0 || sink.calls != 0 {
				t.Errorf("gate must precede outbound calls (lister=%d sink=%d)", lister.calls, sink.calls)
			}
			if result.Message == "" {
				t.Error("skip reason should be reported")
			}
		})
	}
}

func TestRunGateDisabled(t *testing.T) {
	// Saturday, but the caller turned the gate off.
	saturday := time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC)
	lister := &fakeLister{issues: []models.UrgentIssue{urgent("PROJ-1", 1)}}
	sink := &fakeSink{ts: "1724300000.000100"}
	n := testNotifier(lister, sink, saturday)

	p := defaultParams()
	p.SkipWeekendHoliday = false
	result := n.Run(context.Background(), p)

	if result.Skipped {
		t.Error("disabled gate must not skip")
	}
	if sink.calls != 1 {
		t.Errorf("sink calls = %d, want 1", sink.calls)
	}
}

func TestRunConfigMissing(t *testing.T) {
	weekday := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC) // Wednesday

	t.Run("no lister", func(t *testing.T) {
		n := testNotifier(nil, &fakeSink{}, weekday)
		result := n.Run(context.Background(), defaultParams())
		if result.Success || !strings.Contains(result.Error, "Backlog") {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("no sink", func(t *testing.T) {
		n := testNotifier(&fakeLister{}, nil, weekday)
		result := n.Run(context.Background(), defaultParams())
		if result.Success || !strings.Contains(result.Error, "Slack") {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("no channel", func(t *testing.T) {
		n := testNotifier(&fakeLister{}, &fakeSink{}, weekday)
		p := defaultParams()
		p.ChannelID = ""
		result := n.Run(context.Background(), p)
		if result.Success || !strings.Contains(result.Error, "Slack") {
			t.Errorf("unexpected result %+v", result)
		}
	})
}

func TestRunNoUrgentIssues(t *testing.T) {
	weekday := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	sink := &fakeSink{}
	n := testNotifier(&fakeLister{}, sink, weekday)

	result := n.Run(context.Background(), defaultParams())

	if !result.Success || result.Skipped {
		t.Errorf("zero issues is a plain success, got %+v", result)
	}
	if sink.calls != 0 {
		t.Error("nothing to notify must not post")
	}
	if result.IssueCount != 0 {
		t.Errorf("issue count = %d", result.IssueCount)
	}
}

func TestRunPostsAndBuildsPermalink(t *testing.T) {
	weekday := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	lister := &fakeLister{issues: []models.UrgentIssue{urgent("PROJ-1", 0), urgent("PROJ-2", 2)}}
	sink := &fakeSink{ts: "1724300000.000100"}
	n := testNotifier(lister, sink, weekday)

	result := n.Run(context.Background(), defaultParams())

	if !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.IssueCount != 2 {
		t.Errorf("issue count = %d, want 2", result.IssueCount)
	}
	if result.MessageURL != "https://slack.com/archives/C123/p1724300000000100" {
		t.Errorf("message url = %q", result.MessageURL)
	}
	if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "PROJ-1") {
		t.Errorf("posted text missing issue: %q", sink.texts)
	}
}

func TestRunFetchFailure(t *testing.T) {
	weekday := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	sink := &fakeSink{}
	n := testNotifier(&fakeLister{err: fmt.Errorf("502 bad gateway")}, sink, weekday)

	result := n.Run(context.Background(), defaultParams())

	if result.Success || result.Error == "" {
		t.Errorf("unexpected result %+v", result)
	}
	if sink.calls != 0 {
		t.Error("fetch failure must not post")
	}
}

func TestFormatMessage(t *testing.T) {
	issues := []models.UrgentIssue{
		{ProjectName: "P", IssueKey: "PROJ-1", Summary: "超過", DueDate: "2026-08-17", DaysUntilDue: -2, URL: "https://x/1"},
		{ProjectName: "P", IssueKey: "PROJ-2", Summary: "本日", DueDate: "2026-08-19", DaysUntilDue: 0, Assignee: "田中", URL: "https://x/2"},
		{ProjectName: "P", IssueKey: "PROJ-3", Summary: "間近", DueDate: "2026-08-21", DaysUntilDue: 2, URL: "https://x/3"},
	}

	t.Run("upcoming header", func(t *testing.T) {
		msg := FormatMessage(issues, 3, false)
		if !strings.Contains(msg, "期限まで3日以内の課題が3件あります") {
			t.Errorf("header missing:\n%s", msg)
		}
	})

	t.Run("overdue header", func(t *testing.T) {
		msg := FormatMessage(issues, 3, true)
		if !strings.Contains(msg, "期限超過・期限間近の課題が3件あります") {
			t.Errorf("header missing:\n%s", msg)
		}
	})

	t.Run("due labels", func(t *testing.T) {
		msg := FormatMessage(issues, 3, true)
		for _, want := range []string{
			"期限超過2日（2026-08-17）",
			"本日期限（2026-08-19）",
			"あと2日（2026-08-21）",
			"担当: 田中",
			"https://x/1",
		} {
			if !strings.Contains(msg, want) {
				t.Errorf("message missing %q:\n%s", want, msg)
			}
		}
	})
}

func TestGateReason(t *testing.T) {
	holidays := []string{"01-01", "12-31"}

	tests := []struct {
		name string
		now  time.Time
		skip bool
	}{
		{"weekday", time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC), false},
		{"saturday", time.Date(2026, 8, 22, 9, 0, 0, 0, time.UTC), true},
		{"sunday", time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC), true},
		{"new year", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"year end", time.Date(2026, 12, 31, 9, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, reason := gateReason(tt.now, holidays)
			if skip != tt.skip {
				t.Errorf("gateReason() skip = %v, want %v", skip, tt.skip)
			}
			if skip && reason == "" {
				t.Error("skip must carry a reason")
			}
		})
	}
}
