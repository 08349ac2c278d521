package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/chatsentry/chatsentry/internal/store"
)

// Sink delivers one alert to a downstream system.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a *store.AlertRecord) error
}

// DispatcherConfig holds sweep settings.
type DispatcherConfig struct {
	Schedule  string  `json:"schedule" envconfig:"SCHEDULE"`
	BatchSize int     `json:"batchSize" envconfig:"BATCH_SIZE"`
	RateLimit float64 `json:"rateLimit" envconfig:"RATE_LIMIT"` // deliveries per second
}

// DefaultDispatcherConfig returns the stock sweep settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Schedule:  "@every 30s",
		BatchSize: 25,
		RateLimit: 2,
	}
}

// Dispatcher periodically drains the outbox. An alert is marked sent only
// after every sink confirms delivery; anything else stays in the outbox
// for the next sweep (at-least-once, no retry ceiling).
type Dispatcher struct {
	cfg     DispatcherConfig
	store   *store.Store
	sinks   []Sink
	limiter *rate.Limiter
}

// NewDispatcher creates an outbox dispatcher with the given sinks.
func NewDispatcher(cfg DispatcherConfig, s *store.Store, sinks ...Sink) *Dispatcher {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultDispatcherConfig().Schedule
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDispatcherConfig().BatchSize
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultDispatcherConfig().RateLimit
	}
	return &Dispatcher{
		cfg:     cfg,
		store:   s,
		sinks:   sinks,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Run schedules sweeps until the context is cancelled. Overlapping sweeps
// are skipped, not queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.sinks) == 0 {
		slog.Warn("Dispatcher started with no sinks; alerts will accumulate in the outbox")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(d.cfg.Schedule, func() { d.Sweep(ctx) })
	if err != nil {
		return err
	}
	slog.Info("Dispatcher started", "schedule", d.cfg.Schedule, "sinks", len(d.sinks))
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	return ctx.Err()
}

// Sweep attempts delivery for one batch of unsent alerts.
func (d *Dispatcher) Sweep(ctx context.Context) {
	if len(d.sinks) == 0 {
		return
	}
	alerts, err := d.store.ListUnsentAlerts(ctx, d.cfg.BatchSize)
	if err != nil {
		slog.Error("Dispatcher: list unsent alerts failed", "error", err)
		return
	}
	for i := range alerts {
		a := &alerts[i]
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		if !d.deliver(ctx, a) {
			continue
		}
		if err := d.store.MarkAlertSent(ctx, a.ID); err != nil {
			slog.Error("Dispatcher: mark sent failed", "alert", a.AlertID, "error", err)
		}
	}
}

// deliver fans an alert out to every sink. Returns true only when all
// sinks confirmed.
func (d *Dispatcher) deliver(ctx context.Context, a *store.AlertRecord) bool {
	ok := true
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, a); err != nil {
			slog.Warn("Dispatcher: delivery failed", "sink", sink.Name(), "alert", a.AlertID, "error", err)
			ok = false
		}
	}
	return ok
}
