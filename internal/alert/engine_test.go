package alert

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chatsentry/chatsentry/internal/classify"
	"github.com/chatsentry/chatsentry/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chatsentry.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unsentTypes(t *testing.T, s *store.Store) []string {
	t.Helper()
	alerts, err := s.ListUnsentAlerts(context.Background(), 50)
	if err != nil {
		t.Fatalf("list unsent: %v", err)
	}
	var types []string
	for _, a := range alerts {
		types = append(types, a.AlertType)
	}
	return types
}

func TestHighSeverityFiresOnFirstQualifyingReport(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, DefaultThresholds())
	ctx := context.Background()

	err := e.Evaluate(ctx, Evaluation{
		ChatID:     "c1",
		Severity:   classify.SeverityHigh,
		ReportType: classify.ReportTypeViolation,
		TypeCount:  1,
		Counts:     store.ChatCounts{Reports: 1, SevereReports: 1},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	types := unsentTypes(t, s)
	if len(types) != 1 || types[0] != RuleHighSeverity {
		t.Fatalf("expected one high_severity alert, got %v", types)
	}
}

func TestHighSeverityIsEdgeTriggered(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, DefaultThresholds())
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		err := e.Evaluate(ctx, Evaluation{
			ChatID:     "c1",
			Severity:   classify.SeverityHigh,
			ReportType: classify.ReportTypeViolation,
			TypeCount:  i,
			Counts:     store.ChatCounts{Reports: i, SevereReports: i},
		})
		if err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}

	// Only the crossing evaluation fires, not every one above threshold.
	types := unsentTypes(t, s)
	if len(types) != 1 {
		t.Fatalf("expected exactly one alert, got %v", types)
	}
}

func TestSpamRuleFiresAtThreshold(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, DefaultThresholds())
	ctx := context.Background()

	for i := int64(1); i <= 6; i++ {
		err := e.Evaluate(ctx, Evaluation{
			ChatID:     "c1",
			Severity:   classify.SeverityLow,
			ReportType: classify.ReportTypeSpam,
			TypeCount:  i,
			Counts:     store.ChatCounts{Reports: i},
		})
		if err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}

	types := unsentTypes(t, s)
	if len(types) != 1 || types[0] != RuleSpamReports {
		t.Fatalf("expected one spam_reports alert on the 5th report, got %v", types)
	}
}

func TestSpamRuleIgnoresOtherTypes(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, DefaultThresholds())

	err := e.Evaluate(context.Background(), Evaluation{
		ChatID:     "c1",
		Severity:   classify.SeverityLow,
		ReportType: classify.ReportTypeGeneral,
		TypeCount:  5,
		Counts:     store.ChatCounts{Reports: 5},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if types := unsentTypes(t, s); len(types) != 0 {
		t.Fatalf("expected no alerts for general reports, got %v", types)
	}
}

func TestMultipleRulesFireInOnePass(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, Thresholds{HighSeverity: 1, SpamReports: 5, ChannelReports: 5})

	// One report that is severe, the 5th spam report, and the 5th overall.
	err := e.Evaluate(context.Background(), Evaluation{
		ChatID:     "c1",
		Severity:   classify.SeverityHigh,
		ReportType: classify.ReportTypeSpam,
		TypeCount:  5,
		Counts:     store.ChatCounts{Reports: 5, SevereReports: 1},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	types := unsentTypes(t, s)
	if len(types) != 3 {
		t.Fatalf("expected all three rules to fire, got %v", types)
	}
}

func TestChannelReportsThreshold(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, DefaultThresholds())
	ctx := context.Background()

	for i := int64(9); i <= 11; i++ {
		err := e.Evaluate(ctx, Evaluation{
			ChatID:     "c1",
			Severity:   classify.SeverityLow,
			ReportType: classify.ReportTypeGeneral,
			TypeCount:  i,
			Counts:     store.ChatCounts{Reports: i},
		})
		if err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}

	types := unsentTypes(t, s)
	if len(types) != 1 || types[0] != RuleChannelReports {
		t.Fatalf("expected one channel_reports alert at 10, got %v", types)
	}
}
