package connector

import (
	"testing"
	"time"
)

func TestBeginConnects(t *testing.T) {
	m := NewMachine(10, time.Second)

	step := m.Begin()
	if step.Next != StateConnecting || !step.Connect {
		t.Fatalf("expected connecting with connect effect, got %+v", step)
	}

	// Begin is only valid from Idle.
	step = m.Begin()
	if step.Connect {
		t.Fatal("repeated Begin must not reconnect")
	}
}

func TestChallengeLifecycle(t *testing.T) {
	m := NewMachine(10, time.Second)
	m.Begin()

	step := m.ChallengeIssued("qr-payload")
	if step.Next != StateAwaitingCredential {
		t.Fatalf("expected awaiting_credential, got %s", step.Next)
	}
	if !m.HasChallenge() || m.Challenge() != "qr-payload" {
		t.Fatal("expected stored challenge")
	}

	step = m.Opened()
	if step.Next != StateConnected || !step.StartProcessor {
		t.Fatalf("expected connected with processor start, got %+v", step)
	}
	if m.HasChallenge() {
		t.Fatal("challenge must be cleared on login")
	}
	if m.Attempts() != 0 {
		t.Fatalf("attempts must reset on login, got %d", m.Attempts())
	}
}

func TestChallengeExpiredRequestsFreshOne(t *testing.T) {
	m := NewMachine(10, time.Second)
	m.Begin()
	m.ChallengeIssued("old")

	step := m.ChallengeExpired()
	if step.Next != StateConnecting || !step.NewChallenge {
		t.Fatalf("expected connecting with a new challenge, got %+v", step)
	}
	if m.HasChallenge() {
		t.Fatal("expired challenge must be discarded")
	}

	// Expiry outside AwaitingCredential is a no-op.
	m.Opened()
	step = m.ChallengeExpired()
	if step.NewChallenge || step.Next != StateConnected {
		t.Fatalf("expected no-op, got %+v", step)
	}
}

func TestLinearBackoff(t *testing.T) {
	base := 2 * time.Second
	m := NewMachine(10, base)
	m.Begin()
	m.Opened()

	for attempt := 1; attempt <= 3; attempt++ {
		step := m.Closed(ReasonDisconnected)
		if step.Next != StateReconnecting {
			t.Fatalf("attempt %d: expected reconnecting, got %s", attempt, step.Next)
		}
		want := base * time.Duration(attempt)
		if step.ReconnectIn != want {
			t.Fatalf("attempt %d: expected delay %s, got %s", attempt, want, step.ReconnectIn)
		}
		if m.Attempts() != attempt {
			t.Fatalf("expected attempts %d, got %d", attempt, m.Attempts())
		}

		step = m.RetryDue()
		if step.Next != StateConnecting || !step.Connect {
			t.Fatalf("attempt %d: expected connect on retry, got %+v", attempt, step)
		}
	}

	// A successful login resets the backoff progression.
	m.Opened()
	step := m.Closed(ReasonDisconnected)
	if step.ReconnectIn != base {
		t.Fatalf("expected delay reset to %s, got %s", base, step.ReconnectIn)
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	m := NewMachine(2, time.Second)
	m.Begin()

	if step := m.Closed(ReasonConnectFailed); step.Next != StateReconnecting {
		t.Fatalf("attempt 1: %+v", step)
	}
	m.RetryDue()
	if step := m.Closed(ReasonConnectFailed); step.Next != StateReconnecting {
		t.Fatalf("attempt 2: %+v", step)
	}
	m.RetryDue()

	step := m.Closed(ReasonConnectFailed)
	if step.Next != StateTerminated {
		t.Fatalf("expected termination after exhausting retries, got %s", step.Next)
	}
	if step.ReconnectIn != 0 {
		t.Fatal("terminated machine must not schedule reconnects")
	}
}

func TestTerminalCloseReasons(t *testing.T) {
	for _, reason := range []CloseReason{ReasonLoggedOut, ReasonStreamReplaced} {
		m := NewMachine(10, time.Second)
		m.Begin()
		m.Opened()

		step := m.Closed(reason)
		if step.Next != StateTerminated {
			t.Fatalf("%s: expected terminated, got %s", reason.Code, step.Next)
		}
		if m.LastCloseReason() != reason.Code {
			t.Fatalf("expected close reason %s, got %s", reason.Code, m.LastCloseReason())
		}

		// Terminated is permanent.
		if step := m.Opened(); step.Next != StateTerminated || step.StartProcessor {
			t.Fatalf("%s: terminated must be final, got %+v", reason.Code, step)
		}
		if step := m.Closed(ReasonDisconnected); step.ReconnectIn != 0 {
			t.Fatalf("%s: no reconnects after termination", reason.Code)
		}
	}
}

func TestStoppedFromAnyState(t *testing.T) {
	m := NewMachine(10, time.Second)
	m.Begin()
	m.ChallengeIssued("qr")

	step := m.Stopped()
	if step.Next != StateTerminated {
		t.Fatalf("expected terminated, got %s", step.Next)
	}
	if m.HasChallenge() {
		t.Fatal("stop must clear the pending challenge")
	}
}
