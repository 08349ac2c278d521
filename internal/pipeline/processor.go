// Package pipeline runs the single-consumer loop that drains the inbound
// queue: classify, persist, bump counters, evaluate thresholds.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/chatsentry/chatsentry/internal/alert"
	"github.com/chatsentry/chatsentry/internal/bus"
	"github.com/chatsentry/chatsentry/internal/classify"
	"github.com/chatsentry/chatsentry/internal/store"
)

// Processor consumes inbound events sequentially. A single consumer keeps
// per-chat counter updates ordered without locking in the store.
type Processor struct {
	queue   *bus.Queue
	store   *store.Store
	engine  *alert.Engine
	running atomic.Bool
}

// NewProcessor creates a processor over the given queue, store and engine.
func NewProcessor(q *bus.Queue, s *store.Store, e *alert.Engine) *Processor {
	return &Processor{queue: q, store: s, engine: e}
}

// Start launches the consumer loop in its own goroutine. Repeated calls
// while running are no-ops, so session reconnects never spawn a second
// consumer.
func (p *Processor) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.running.Store(false)
		p.Run(ctx)
	}()
}

// Stop asks the loop to finish after the in-flight event.
func (p *Processor) Stop() {
	p.running.Store(false)
}

// Run processes events until the context is cancelled or Stop is called.
// A failed event is logged and dropped; the loop keeps going.
func (p *Processor) Run(ctx context.Context) {
	p.running.Store(true)
	slog.Info("Processor loop started")

	for p.running.Load() {
		ev, err := p.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Processor loop stopped")
				return
			}
			slog.Error("Failed to consume event", "error", err)
			continue
		}
		if err := p.process(ctx, ev); err != nil {
			slog.Error("Failed to process event", "external_id", ev.ExternalID, "error", err)
		}
	}
	slog.Info("Processor loop stopped")
}

// process handles one inbound event end to end.
func (p *Processor) process(ctx context.Context, ev *bus.InboundEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing event: %v", r)
		}
	}()

	res := classify.Classify(ev.Content)

	if res.IsReport {
		id, err := p.store.SaveReport(ctx, &store.ReportRecord{
			MessageID:  ev.ExternalID,
			ChatID:     ev.ChatID,
			SenderID:   ev.SenderID,
			Content:    ev.Content,
			ReportType: string(res.ReportType),
			Severity:   res.Severity,
		})
		if err != nil {
			return err
		}
		if id == 0 {
			// Duplicate delivery: the first pass already counted it.
			slog.Debug("Duplicate report skipped", "external_id", ev.ExternalID)
			return nil
		}
	}

	delta := store.ChatDelta{
		DisplayName:      ev.ChatName,
		Kind:             string(ev.ChatKind),
		ParticipantCount: ev.ParticipantCount,
		Messages:         1,
		LastActivity:     ev.Timestamp,
	}
	if res.IsReport {
		delta.Reports = 1
		if res.Severity >= classify.SeverityMedium {
			delta.SevereReports = 1
		}
	}
	if res.IsRequest {
		delta.Requests = 1
	}

	counts, err := p.store.UpsertChat(ctx, ev.ChatID, delta)
	if err != nil {
		return err
	}

	if !res.IsReport {
		return nil
	}

	typeCount, err := p.store.IncrementReportCounter(ctx, ev.ChatID, string(res.ReportType))
	if err != nil {
		return err
	}

	slog.Info("Report recorded",
		"chat", ev.ChatID, "type", res.ReportType, "severity", res.Severity,
		"type_count", typeCount, "chat_reports", counts.Reports)

	return p.engine.Evaluate(ctx, alert.Evaluation{
		ChatID:     ev.ChatID,
		Severity:   res.Severity,
		ReportType: res.ReportType,
		TypeCount:  typeCount,
		Counts:     counts,
	})
}
