package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// NameNoop selects the Noop transport from config.
const NameNoop = "noop"

// Noop accepts every batch and discards it. It keeps the engine runnable
// without a message bus.
type Noop struct {
	sent atomic.Int64
}

func (n *Noop) Send(_ context.Context, batch []events.Envelope) error {
	n.sent.Add(int64(len(batch)))
	return nil
}

func (n *Noop) Health(context.Context) Health {
	return Health{Healthy: true, Detail: NameNoop, CheckedAt: time.Now()}
}

// Sent reports how many envelopes were accepted.
func (n *Noop) Sent() int64 { return n.sent.Load() }
