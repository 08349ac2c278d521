// Package alert contains the threshold engine that fills the alert outbox
// and the dispatcher that drains it.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chatsentry/chatsentry/internal/classify"
	"github.com/chatsentry/chatsentry/internal/store"
)

// Rule names as stored in alert_type.
const (
	RuleHighSeverity   = "high_severity"
	RuleSpamReports    = "spam_reports"
	RuleChannelReports = "channel_reports"
)

// Thresholds configures when each rule fires.
type Thresholds struct {
	HighSeverity   int64 `json:"highSeverity" envconfig:"HIGH_SEVERITY"`
	SpamReports    int64 `json:"spamReports" envconfig:"SPAM_REPORTS"`
	ChannelReports int64 `json:"channelReports" envconfig:"CHANNEL_REPORTS"`
}

// DefaultThresholds returns the stock rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighSeverity:   1,
		SpamReports:    5,
		ChannelReports: 10,
	}
}

// Engine evaluates threshold rules against freshly updated counters and
// appends one outbox record per firing rule. It never delivers alerts.
type Engine struct {
	store      *store.Store
	thresholds Thresholds
}

// NewEngine creates a threshold engine backed by the given store.
func NewEngine(s *store.Store, t Thresholds) *Engine {
	if t.HighSeverity <= 0 {
		t.HighSeverity = 1
	}
	if t.SpamReports <= 0 {
		t.SpamReports = 5
	}
	if t.ChannelReports <= 0 {
		t.ChannelReports = 10
	}
	return &Engine{store: s, thresholds: t}
}

// Evaluation carries the updated counters for one persisted report.
type Evaluation struct {
	ChatID     string
	Severity   int
	ReportType classify.ReportType
	TypeCount  int64            // per-(chat, type) count after increment
	Counts     store.ChatCounts // chat counters after upsert
}

// Evaluate runs every rule in order. Rules are independent: one report can
// fire several alerts in a single pass. Firing is edge-triggered — each
// counter increments by exactly one per persisted report, so a rule fires
// only on the increment that reaches its threshold, never again past it.
func (e *Engine) Evaluate(ctx context.Context, ev Evaluation) error {
	var errs []error

	if ev.Severity >= classify.SeverityMedium && crossed(ev.Counts.SevereReports, e.thresholds.HighSeverity) {
		errs = append(errs, e.emit(ctx, &store.AlertRecord{
			ChatID:    ev.ChatID,
			AlertType: RuleHighSeverity,
			Severity:  ev.Severity,
			Message: fmt.Sprintf("high-severity report (severity %d, type %s) in chat %s",
				ev.Severity, ev.ReportType, ev.ChatID),
		}))
	}

	if ev.ReportType == classify.ReportTypeSpam && crossed(ev.TypeCount, e.thresholds.SpamReports) {
		errs = append(errs, e.emit(ctx, &store.AlertRecord{
			ChatID:    ev.ChatID,
			AlertType: RuleSpamReports,
			Severity:  classify.SeverityMedium,
			Message: fmt.Sprintf("chat %s reached %d spam reports",
				ev.ChatID, ev.TypeCount),
		}))
	}

	if crossed(ev.Counts.Reports, e.thresholds.ChannelReports) {
		errs = append(errs, e.emit(ctx, &store.AlertRecord{
			ChatID:    ev.ChatID,
			AlertType: RuleChannelReports,
			Severity:  classify.SeverityHigh,
			Message: fmt.Sprintf("chat %s reached %d total reports",
				ev.ChatID, ev.Counts.Reports),
		}))
	}

	return errors.Join(errs...)
}

func (e *Engine) emit(ctx context.Context, a *store.AlertRecord) error {
	if _, err := e.store.AppendAlert(ctx, a); err != nil {
		return fmt.Errorf("emit %s alert: %w", a.AlertType, err)
	}
	slog.Info("Alert queued", "rule", a.AlertType, "chat", a.ChatID, "severity", a.Severity)
	return nil
}

// crossed reports whether count just reached threshold from below. Counters
// are monotonic and move in steps of one, so this holds exactly once.
func crossed(count, threshold int64) bool {
	return count >= threshold && count-1 < threshold
}
