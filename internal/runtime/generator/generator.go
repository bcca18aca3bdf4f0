// Package generator supplies the events a streaming session publishes.
package generator

import (
	"context"
	"time"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// ContentGenerator produces one burst per call. Implementations must return
// quickly and must not touch engine state.
type ContentGenerator interface {
	GenerateBurst(now time.Time) ([]events.Envelope, error)
}

// Initializer is implemented by generators that need setup before the first
// burst.
type Initializer interface {
	Init(ctx context.Context) error
}

// Finisher is implemented by generators that emit closing events when a
// session ends. They are flushed with the rest of the buffer.
type Finisher interface {
	Finish(now time.Time) []events.Envelope
}

// Func adapts a function to ContentGenerator.
type Func func(now time.Time) ([]events.Envelope, error)

func (f Func) GenerateBurst(now time.Time) ([]events.Envelope, error) {
	return f(now)
}
