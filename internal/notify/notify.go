// Package notify implements the urgent-item notification flow: list due or
// overdue open Backlog issues across tenants and post a summary to Slack,
// gated on weekday/holiday.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// Variant selects which due-date filter the run applies.
const (
	VariantUpcoming = "upcoming"
	VariantOverdue  = "overdue"
)

// UrgentLister is the tracker capability the notifier needs.
type UrgentLister interface {
	ListDueIssues(ctx context.Context, threshold int, includeOverdue bool) ([]models.UrgentIssue, error)
}

// Sink is the chat capability the notifier needs. PostMessage returns the
// message timestamp used to build a permalink.
type Sink interface {
	PostMessage(ctx context.Context, channel, text string) (string, error)
}

// Params is one notification invocation.
type Params struct {
	DaysThreshold      int
	ChannelID          string
	SkipWeekendHoliday bool
	Variant            string
}

// Notifier runs the urgent-item notification flow.
type Notifier struct {
	lister UrgentLister
	sink   Sink
	cfg    config.NotifyConfig
	now    func() time.Time
}

// NewNotifier creates a Notifier. Either dependency may be nil when its
// credentials are absent; Run reports that as a configuration error.
func NewNotifier(lister UrgentLister, sink Sink, cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		lister: lister,
		sink:   sink,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run executes one notification. It never panics or errors past its
// boundary: all outcomes land in the NotifyResult.
func (n *Notifier) Run(ctx context.Context, p Params) *models.NotifyResult {
	result := &models.NotifyResult{RunID: uuid.NewString()}

	record := func(name string, status models.StepStatus, detail string) {
		result.Steps = append(result.Steps, models.StepRecord{Name: name, Status: status, Detail: detail})
	}

	if p.SkipWeekendHoliday {
		if skip, reason := gateReason(n.now(), n.cfg.Holidays); skip {
			record("gate", models.StepSkipped, reason)
			result.Success = true
			result.Skipped = true
			result.Message = reason
			return result
		}
	}
	record("gate", models.StepOK, "")

	if n.lister == nil {
		result.Error = "Backlog の認証情報が設定されていません"
		record("fetch", models.StepFailed, result.Error)
		return result
	}
	if n.sink == nil || p.ChannelID == "" {
		result.Error = "Slack の通知先が設定されていません"
		record("send", models.StepFailed, result.Error)
		return result
	}

	includeOverdue := p.Variant == VariantOverdue
	issues, err := n.lister.ListDueIssues(ctx, p.DaysThreshold, includeOverdue)
	if err != nil {
		result.Error = fmt.Sprintf("課題の取得に失敗しました: %v", err)
		record("fetch", models.StepFailed, result.Error)
		return result
	}
	record("fetch", models.StepOK, fmt.Sprintf("%d issues", len(issues)))
	result.IssueCount = len(issues)

	if len(issues) == 0 {
		result.Success = true
		result.Message = "期限が近い課題はありません"
		record("send", models.StepSkipped, "nothing to notify")
		return result
	}

	text := FormatMessage(issues, p.DaysThreshold, includeOverdue)
	ts, err := n.sink.PostMessage(ctx, p.ChannelID, text)
	if err != nil {
		result.Error = fmt.Sprintf("Slack への送信に失敗しました: %v", err)
		record("send", models.StepFailed, result.Error)
		return result
	}
	record("send", models.StepOK, "")

	result.Success = true
	result.Message = fmt.Sprintf("%d件の課題を通知しました", len(issues))
	result.MessageURL = MessageURL(p.ChannelID, ts)
	return result
}

// FormatMessage renders the urgent issue list as markdown-lite chat text.
// The input is expected sorted ascending by days-until-due.
func FormatMessage(issues []models.UrgentIssue, threshold int, includeOverdue bool) string {
	var sb strings.Builder

	if includeOverdue {
		fmt.Fprintf(&sb, ":rotating_light: 期限超過・期限間近の課題が%d件あります\n\n", len(issues))
	} else {
		fmt.Fprintf(&sb, ":warning: 期限まで%d日以内の課題が%d件あります\n\n", threshold, len(issues))
	}

	for _, is := range issues {
		fmt.Fprintf(&sb, "• [%s] %s\n", is.IssueKey, is.Summary)
		fmt.Fprintf(&sb, "  %s / %s", is.ProjectName, dueLabel(is))
		if is.Assignee != "" {
			fmt.Fprintf(&sb, " / 担当: %s", is.Assignee)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "  %s\n", is.URL)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func dueLabel(is models.UrgentIssue) string {
	switch {
	case is.DaysUntilDue < 0:
		return fmt.Sprintf("期限超過%d日（%s）", -is.DaysUntilDue, is.DueDate)
	case is.DaysUntilDue == 0:
		return fmt.Sprintf("本日期限（%s）", is.DueDate)
	default:
		return fmt.Sprintf("あと%d日（%s）", is.DaysUntilDue, is.DueDate)
	}
}
