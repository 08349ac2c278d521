package connector

import "time"

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingCredential
	StateConnected
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingCredential:
		return "awaiting_credential"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Step is the result of one transition: the new state plus the effects
// the caller must perform. The machine itself does no IO.
type Step struct {
	Next           State
	Connect        bool          // open a session now
	ReconnectIn    time.Duration // >0: schedule a reconnect attempt
	StartProcessor bool          // consumer loop should run
	NewChallenge   bool          // a fresh credential challenge is needed
}

// Machine holds connection state and reconnect accounting. Transitions
// are pure; the Manager interprets the returned Step.
type Machine struct {
	state        State
	attempts     int
	maxAttempts  int
	baseInterval time.Duration
	challenge    string
	lastClose    string
}

// NewMachine creates a machine in the Idle state. Reconnect delay grows
// linearly: baseInterval * attempts, capped by maxAttempts total tries.
func NewMachine(maxAttempts int, baseInterval time.Duration) *Machine {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if baseInterval <= 0 {
		baseInterval = 5 * time.Second
	}
	return &Machine{
		maxAttempts:  maxAttempts,
		baseInterval: baseInterval,
	}
}

func (m *Machine) State() State            { return m.state }
func (m *Machine) Attempts() int           { return m.attempts }
func (m *Machine) Challenge() string       { return m.challenge }
func (m *Machine) HasChallenge() bool      { return m.challenge != "" }
func (m *Machine) LastCloseReason() string { return m.lastClose }

// Begin transitions Idle to Connecting.
func (m *Machine) Begin() Step {
	if m.state != StateIdle {
		return Step{Next: m.state}
	}
	m.state = StateConnecting
	return Step{Next: m.state, Connect: true}
}

// ChallengeIssued stores the pairing payload and moves to
// AwaitingCredential. Repeated challenges just replace the stored code.
func (m *Machine) ChallengeIssued(code string) Step {
	if m.state == StateTerminated || m.state == StateIdle {
		return Step{Next: m.state}
	}
	m.state = StateAwaitingCredential
	m.challenge = code
	return Step{Next: m.state}
}

// ChallengeExpired returns to Connecting and asks for a fresh challenge.
func (m *Machine) ChallengeExpired() Step {
	if m.state != StateAwaitingCredential {
		return Step{Next: m.state}
	}
	m.state = StateConnecting
	m.challenge = ""
	return Step{Next: m.state, NewChallenge: true}
}

// Opened confirms the session: attempts reset to zero, the stored
// challenge is cleared, and the processor must be running.
func (m *Machine) Opened() Step {
	if m.state == StateTerminated {
		return Step{Next: m.state}
	}
	m.state = StateConnected
	m.attempts = 0
	m.challenge = ""
	return Step{Next: m.state, StartProcessor: true}
}

// Closed handles a session close. Terminal reasons and exhausted retry
// budgets both end in Terminated; the transition to Terminated is
// permanent for the lifetime of the instance.
func (m *Machine) Closed(reason CloseReason) Step {
	if m.state == StateTerminated || m.state == StateIdle {
		return Step{Next: m.state}
	}
	m.lastClose = reason.Code
	m.challenge = ""
	if reason.Terminal {
		m.state = StateTerminated
		return Step{Next: m.state}
	}
	if m.attempts+1 > m.maxAttempts {
		m.state = StateTerminated
		return Step{Next: m.state}
	}
	m.attempts++
	m.state = StateReconnecting
	return Step{Next: m.state, ReconnectIn: m.baseInterval * time.Duration(m.attempts)}
}

// RetryDue fires when the scheduled reconnect delay elapses.
func (m *Machine) RetryDue() Step {
	if m.state != StateReconnecting {
		return Step{Next: m.state}
	}
	m.state = StateConnecting
	return Step{Next: m.state, Connect: true}
}

// Stopped is an explicit operator stop from any state.
func (m *Machine) Stopped() Step {
	m.state = StateTerminated
	m.challenge = ""
	return Step{Next: m.state}
}
