package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chatsentry/chatsentry/internal/alert"
	"github.com/chatsentry/chatsentry/internal/bus"
	"github.com/chatsentry/chatsentry/internal/store"
)

type fixture struct {
	queue *bus.Queue
	store *store.Store
	proc  *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chatsentry.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	q := bus.NewQueue(32)
	e := alert.NewEngine(s, alert.DefaultThresholds())
	return &fixture{queue: q, store: s, proc: NewProcessor(q, s, e)}
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.proc.Start(ctx)
}

func (f *fixture) waitForMessages(t *testing.T, chatID string, want int64) *store.ChatRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		chat, err := f.store.GetChat(context.Background(), chatID)
		if err != nil {
			t.Fatalf("get chat: %v", err)
		}
		if chat != nil && chat.MessageCount >= want {
			return chat
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("chat %s never reached %d messages", chatID, want)
	return nil
}

func publish(t *testing.T, q *bus.Queue, id, content string) {
	t.Helper()
	err := q.Publish(&bus.InboundEvent{
		ExternalID: id,
		ChatID:     "c1",
		ChatName:   "Test Group",
		ChatKind:   bus.ChatKindGroup,
		SenderID:   "u1",
		Content:    content,
	})
	if err != nil {
		t.Fatalf("publish %s: %v", id, err)
	}
}

func TestProcessorCountsMessagesReportsAndRequests(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	publish(t, f.queue, "e1", "good morning everyone")
	publish(t, f.queue, "e2", "I want to report spam here")
	publish(t, f.queue, "e3", "can you explain the rules?")

	chat := f.waitForMessages(t, "c1", 3)
	if chat.ReportCount != 1 {
		t.Fatalf("expected 1 report, got %d", chat.ReportCount)
	}
	if chat.RequestCount != 1 {
		t.Fatalf("expected 1 request, got %d", chat.RequestCount)
	}
	if chat.DisplayName != "Test Group" || chat.Kind != "group" {
		t.Fatalf("chat metadata not recorded: %+v", chat)
	}

	report, err := f.store.GetReport(context.Background(), "e2")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report == nil || report.ReportType != "spam" {
		t.Fatalf("expected a persisted spam report, got %+v", report)
	}
}

func TestProcessorIdempotentRedelivery(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	publish(t, f.queue, "e1", "report this spam account")
	f.waitForMessages(t, "c1", 1)

	// Same external id delivered again: nothing may be counted twice.
	publish(t, f.queue, "e1", "report this spam account")
	publish(t, f.queue, "e2", "hello")
	chat := f.waitForMessages(t, "c1", 2)

	if chat.MessageCount != 2 {
		t.Fatalf("duplicate must not bump message count, got %d", chat.MessageCount)
	}
	if chat.ReportCount != 1 {
		t.Fatalf("duplicate must not bump report count, got %d", chat.ReportCount)
	}
}

func TestProcessorQueuesAlertOnUrgentReport(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	publish(t, f.queue, "e1", "urgent: report this violation immediately")
	chat := f.waitForMessages(t, "c1", 1)
	if chat.SevereReportCount != 1 {
		t.Fatalf("expected 1 severe report, got %d", chat.SevereReportCount)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		alerts, err := f.store.ListUnsentAlerts(context.Background(), 10)
		if err != nil {
			t.Fatalf("list unsent: %v", err)
		}
		if len(alerts) == 1 {
			if alerts[0].AlertType != alert.RuleHighSeverity {
				t.Fatalf("expected high_severity alert, got %s", alerts[0].AlertType)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected a queued alert")
}

func TestProcessorStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.proc.Start(ctx)
	f.proc.Start(ctx) // second consumer must not spawn

	for i := 0; i < 5; i++ {
		publish(t, f.queue, string(rune('a'+i)), "hello")
	}
	chat := f.waitForMessages(t, "c1", 5)
	if chat.MessageCount != 5 {
		t.Fatalf("expected 5 messages, got %d", chat.MessageCount)
	}
}

func TestProcessorSurvivesBadEvent(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	// A nil-content event classifies as neutral and must not stall the loop.
	publish(t, f.queue, "e1", "")
	publish(t, f.queue, "e2", "report spam")
	chat := f.waitForMessages(t, "c1", 2)
	if chat.ReportCount != 1 {
		t.Fatalf("expected the loop to keep processing, got %+v", chat)
	}
}
