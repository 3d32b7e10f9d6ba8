// Package queue abstracts the message queue that carries job envelopes from
// producers to workers. Delivery is at-least-once; a received message stays
// hidden for its visibility timeout and reappears unless acknowledged.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/lectern/core"
)

const (
	// DefaultWait is the long-poll wait used by workers.
	DefaultWait = 20 * time.Second

	// DefaultVisibilityTimeout hides a received message from other consumers.
	DefaultVisibilityTimeout = 900 * time.Second

	// DefaultMaxReceive is the delivery count after which a message is dead-lettered.
	DefaultMaxReceive = 3
)

var (
	// ErrQueueClosed is returned when operating on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrReceiptExpired is returned when a receipt no longer identifies the
	// current delivery of its message.
	ErrReceiptExpired = errors.New("receipt expired")
)

// Message is one delivery of an envelope.
type Message struct {
	ID           string
	Body         []byte
	Receipt      string // token for Ack and ExtendVisibility
	ReceiveCount int    // deliveries so far, including this one
}

// Queue is the client contract every transport implements.
type Queue interface {
	// Send enqueues an envelope.
	Send(ctx context.Context, envelope core.Envelope) error

	// Receive long-polls for one message for at most wait.
	// Returns nil, nil when the wait elapses without a message.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)

	// Ack deletes the delivered message.
	Ack(ctx context.Context, receipt string) error

	// ExtendVisibility keeps the delivered message hidden for d from now.
	ExtendVisibility(ctx context.Context, receipt string, d time.Duration) error

	// Depth returns the approximate number of messages waiting for delivery.
	Depth(ctx context.Context) (int, error)

	Close() error
}
