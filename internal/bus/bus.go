// Package bus provides the inbound event queue between the platform
// connector and the sequential processor.
package bus

import (
	"context"
	"errors"
	"time"
)

// DefaultCapacity is used when a Queue is created with a non-positive size.
const DefaultCapacity = 1024

// ErrQueueFull is returned by Publish when the queue is at capacity.
// The producer decides what to do with the event; the queue never blocks
// the platform's event-delivery goroutine.
var ErrQueueFull = errors.New("bus: inbound queue full")

// ChatKind distinguishes group chats from direct conversations.
type ChatKind string

const (
	ChatKindGroup  ChatKind = "group"
	ChatKindDirect ChatKind = "direct"
)

// InboundEvent is a raw platform message. It is owned by the queue until
// the processor consumes it.
type InboundEvent struct {
	ExternalID       string    `json:"external_id"`
	ChatID           string    `json:"chat_id"`
	ChatName         string    `json:"chat_name,omitempty"`
	ChatKind         ChatKind  `json:"chat_kind"`
	ParticipantCount int       `json:"participant_count,omitempty"`
	SenderID         string    `json:"sender_id"`
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
}

// Queue is a bounded FIFO buffer of inbound events. A single consumer
// drains it; producers append from the connector's event goroutine.
type Queue struct {
	events chan *InboundEvent
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{events: make(chan *InboundEvent, capacity)}
}

// Publish appends an event to the tail without blocking. Returns
// ErrQueueFull when the buffer is at capacity.
func (q *Queue) Publish(ev *InboundEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case q.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume blocks until an event is available or the context is cancelled.
func (q *Queue) Consume(ctx context.Context) (*InboundEvent, error) {
	select {
	case ev := <-q.events:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth returns the number of buffered events.
func (q *Queue) Depth() int {
	return len(q.events)
}
