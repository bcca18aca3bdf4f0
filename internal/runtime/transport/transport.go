// Package transport adapts message bus publishers to the batch-oriented
// interface the streaming engine drives, and guards every send with the
// circuit breaker and the batch timeout.
package transport

import (
	"context"
	"time"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// Health is the result of a liveness probe.
type Health struct {
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Transport publishes batches of envelopes. A nil error from Send means the
// whole batch was accepted.
type Transport interface {
	Send(ctx context.Context, batch []events.Envelope) error
	Health(ctx context.Context) Health
}

// Initializer is implemented by transports that need a setup step before
// the first send.
type Initializer interface {
	Init(ctx context.Context) error
}
