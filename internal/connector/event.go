// Package connector owns the platform session: the connection state
// machine, reconnect scheduling, and the whatsmeow adapter.
package connector

import (
	"context"
	"time"

	"github.com/chatsentry/chatsentry/internal/bus"
)

// Event is the closed union of session events a Connector emits. The
// manager dispatches on the concrete type, so the state machine is
// testable without a live session.
type Event interface {
	isEvent()
}

// CredentialChallenge carries a pairing artifact (a QR payload) that must
// be presented out-of-band to authenticate a new session.
type CredentialChallenge struct {
	Code    string
	Timeout time.Duration
}

// SessionOpened signals a confirmed login.
type SessionOpened struct{}

// SessionClosed signals session loss with a classified reason.
type SessionClosed struct {
	Reason CloseReason
}

// MessageReceived wraps one raw inbound platform message.
type MessageReceived struct {
	Message *bus.InboundEvent
}

func (CredentialChallenge) isEvent() {}
func (SessionOpened) isEvent()       {}
func (SessionClosed) isEvent()       {}
func (MessageReceived) isEvent()     {}

// CloseReason classifies a session close. Terminal reasons (explicit
// logout, session takeover) end the instance; anything else is retried
// with backoff.
type CloseReason struct {
	Code     string
	Terminal bool
}

var (
	ReasonDisconnected   = CloseReason{Code: "disconnected"}
	ReasonStreamError    = CloseReason{Code: "stream_error"}
	ReasonConnectFailed  = CloseReason{Code: "connect_failed"}
	ReasonLoggedOut      = CloseReason{Code: "logged_out", Terminal: true}
	ReasonStreamReplaced = CloseReason{Code: "stream_replaced", Terminal: true}
)

// Connector is the live platform session consumed by the Manager.
type Connector interface {
	// Connect opens (or re-opens) the session. Session progress is
	// reported through Events, not the return value.
	Connect(ctx context.Context) error
	// Disconnect tears the session down.
	Disconnect()
	// SendText sends a plain text message to a chat.
	SendText(ctx context.Context, chatID, text string) error
	// Events is the stream of session events.
	Events() <-chan Event
}
