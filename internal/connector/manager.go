package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/chatsentry/chatsentry/internal/bus"
)

// DefaultChallengeTimeout bounds how long a pairing challenge stays valid
// before a fresh one is requested.
const DefaultChallengeTimeout = 60 * time.Second

// ErrNotConnected is returned by SendText outside the Connected state.
var ErrNotConnected = errors.New("connector: session not connected")

// ProcessorStarter is the consumer loop started when the session opens.
type ProcessorStarter interface {
	Start(ctx context.Context)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Connector        Connector
	Queue            *bus.Queue
	Processor        ProcessorStarter
	ChallengeTimeout time.Duration
	BaseInterval     time.Duration
	MaxAttempts      int
	QRPath           string // optional: render challenges to a PNG here
}

// Status is the operator-facing connection snapshot.
type Status struct {
	State                  string `json:"state"`
	ReconnectAttempts      int    `json:"reconnect_attempts"`
	HasCredentialChallenge bool   `json:"has_credential_challenge"`
	QueueDepth             int    `json:"queue_depth"`
}

// Manager drives the session lifecycle. A single goroutine consumes
// connector events and timer fires, so transitions never race.
type Manager struct {
	conn             Connector
	queue            *bus.Queue
	processor        ProcessorStarter
	challengeTimeout time.Duration
	qrPath           string

	mu      sync.Mutex
	machine *Machine

	reconnectTimer *time.Timer
	reconnectC     <-chan time.Time
	challengeTimer *time.Timer
	challengeC     <-chan time.Time

	stopOnce sync.Once
	stopC    chan struct{}
}

// NewManager creates a connection manager in the Idle state.
func NewManager(opts ManagerOptions) *Manager {
	timeout := opts.ChallengeTimeout
	if timeout <= 0 {
		timeout = DefaultChallengeTimeout
	}
	return &Manager{
		conn:             opts.Connector,
		queue:            opts.Queue,
		processor:        opts.Processor,
		challengeTimeout: timeout,
		qrPath:           opts.QRPath,
		machine:          NewMachine(opts.MaxAttempts, opts.BaseInterval),
		stopC:            make(chan struct{}),
	}
}

// Run connects and then serves session events until the session is
// terminated, Stop is called, or the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.apply(ctx, m.transition(func(ma *Machine) Step { return ma.Begin() }))

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-m.stopC:
			m.shutdown()
			return nil
		case ev, ok := <-m.conn.Events():
			if !ok {
				m.shutdown()
				return nil
			}
			m.handleEvent(ctx, ev)
		case <-m.reconnectC:
			m.disarmReconnect()
			m.apply(ctx, m.transition(func(ma *Machine) Step { return ma.RetryDue() }))
		case <-m.challengeC:
			m.disarmChallenge()
			slog.Warn("Credential challenge expired; requesting a new one", "timeout", m.challengeTimeout)
			step := m.transition(func(ma *Machine) Step { return ma.ChallengeExpired() })
			if step.NewChallenge {
				// Cycling the session makes the platform issue a fresh challenge.
				m.conn.Disconnect()
				step.Connect = true
			}
			m.apply(ctx, step)
		}

		if m.terminated() {
			m.shutdown()
			return nil
		}
	}
}

func (m *Manager) terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.State() == StateTerminated
}

// Stop requests a permanent shutdown.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopC) })
}

// SendText relays a text message through the live session.
func (m *Manager) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	state := m.machine.State()
	m.mu.Unlock()
	if state != StateConnected {
		return ErrNotConnected
	}
	return m.conn.SendText(ctx, chatID, text)
}

// Status returns a point-in-time snapshot for the status surface.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		State:                  m.machine.State().String(),
		ReconnectAttempts:      m.machine.Attempts(),
		HasCredentialChallenge: m.machine.HasChallenge(),
	}
	if m.queue != nil {
		s.QueueDepth = m.queue.Depth()
	}
	return s
}

// handleEvent dispatches one connector event.
func (m *Manager) handleEvent(ctx context.Context, ev Event) {
	switch v := ev.(type) {
	case CredentialChallenge:
		step := m.transition(func(ma *Machine) Step { return ma.ChallengeIssued(v.Code) })
		if step.Next == StateAwaitingCredential {
			m.presentChallenge(v)
			timeout := v.Timeout
			if timeout <= 0 {
				timeout = m.challengeTimeout
			}
			m.armChallenge(timeout)
		}
		m.apply(ctx, step)
	case SessionOpened:
		m.disarmChallenge()
		m.disarmReconnect()
		slog.Info("Session connected")
		m.apply(ctx, m.transition(func(ma *Machine) Step { return ma.Opened() }))
	case SessionClosed:
		m.disarmChallenge()
		step := m.transition(func(ma *Machine) Step { return ma.Closed(v.Reason) })
		if step.Next == StateTerminated {
			slog.Error("Session terminated", "reason", v.Reason.Code)
			return
		}
		slog.Warn("Session closed; reconnect scheduled",
			"reason", v.Reason.Code, "attempt", m.attempts(), "delay", step.ReconnectIn)
		m.apply(ctx, step)
	case MessageReceived:
		m.enqueue(v.Message)
	}
}

// apply performs the side effects a transition step calls for.
func (m *Manager) apply(ctx context.Context, step Step) {
	if step.ReconnectIn > 0 {
		m.armReconnect(step.ReconnectIn)
	}
	if step.StartProcessor && m.processor != nil {
		m.processor.Start(ctx)
	}
	if step.Connect {
		if err := m.conn.Connect(ctx); err != nil {
			slog.Warn("Connect failed", "error", err)
			next := m.transition(func(ma *Machine) Step { return ma.Closed(ReasonConnectFailed) })
			if next.Next == StateTerminated {
				slog.Error("Retry budget exhausted; terminating", "reason", ReasonConnectFailed.Code)
			}
			m.apply(ctx, next)
		}
	}
}

// enqueue publishes a raw message into the inbound queue. Events arriving
// outside Connected are dropped; a full queue drops with a warning.
func (m *Manager) enqueue(msg *bus.InboundEvent) {
	m.mu.Lock()
	state := m.machine.State()
	m.mu.Unlock()
	if state != StateConnected || m.queue == nil {
		return
	}
	if err := m.queue.Publish(msg); err != nil {
		slog.Warn("Inbound queue rejected event", "external_id", msg.ExternalID, "error", err)
	}
}

func (m *Manager) presentChallenge(c CredentialChallenge) {
	slog.Info("Credential challenge received; pair the device to continue")
	if m.qrPath == "" {
		return
	}
	if err := qrcode.WriteFile(c.Code, qrcode.Medium, 512, m.qrPath); err != nil {
		slog.Warn("Failed to render challenge QR", "path", m.qrPath, "error", err)
		return
	}
	fmt.Printf("Scan the QR code saved at %s to log in\n", m.qrPath)
}

func (m *Manager) transition(fn func(*Machine) Step) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.machine)
}

func (m *Manager) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Attempts()
}

func (m *Manager) shutdown() {
	m.disarmReconnect()
	m.disarmChallenge()
	m.transition(func(ma *Machine) Step { return ma.Stopped() })
	m.conn.Disconnect()
}

func (m *Manager) armReconnect(d time.Duration) {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	m.reconnectTimer = time.NewTimer(d)
	m.reconnectC = m.reconnectTimer.C
}

func (m *Manager) disarmReconnect() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.reconnectC = nil
}

func (m *Manager) armChallenge(d time.Duration) {
	if m.challengeTimer != nil {
		m.challengeTimer.Stop()
	}
	m.challengeTimer = time.NewTimer(d)
	m.challengeC = m.challengeTimer.C
}

func (m *Manager) disarmChallenge() {
	if m.challengeTimer != nil {
		m.challengeTimer.Stop()
		m.challengeTimer = nil
	}
	m.challengeC = nil
}
