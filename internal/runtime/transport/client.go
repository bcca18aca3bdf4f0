package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/classify"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/events"
)

// DefaultSendTimeout bounds a send when the client was built without one.
const DefaultSendTimeout = time.Second

// Client is the engine's view of the transport: every send passes through
// the circuit breaker and is bounded by the batch timeout.
type Client struct {
	transport Transport
	breaker   *breaker.CircuitBreaker
	timeout   time.Duration
	now       func() time.Time
}

// NewClient wraps t. A nil breaker disables circuit breaking.
func NewClient(t Transport, cb *breaker.CircuitBreaker, timeout time.Duration) (*Client, error) {
	if t == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if cb == nil {
		cb = breaker.New(breaker.Settings{Enabled: false})
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Client{transport: t, breaker: cb, timeout: timeout, now: time.Now}, nil
}

// Init runs the transport's setup step, if it has one.
func (c *Client) Init(ctx context.Context) error {
	if init, ok := c.transport.(Initializer); ok {
		return init.Init(ctx)
	}
	return nil
}

// Send publishes batch. When the breaker rejects the call the transport is
// not touched and the error wraps breaker.ErrCircuitOpen. A send that
// outlives the batch timeout fails with a timeout error. A panicking
// transport fails the send like any other error.
func (c *Client) Send(ctx context.Context, batch []events.Envelope) error {
	if len(batch) == 0 {
		return nil
	}
	return c.breaker.Execute(func() error {
		sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := c.publish(sendCtx, batch)
		if err != nil && errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return classify.Timeout(err)
		}
		return err
	})
}

func (c *Client) publish(ctx context.Context, batch []events.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return c.transport.Send(ctx, batch)
}

// Health probes the transport within the batch timeout. Probes do not
// count against the breaker.
func (c *Client) Health(ctx context.Context) Health {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	h := c.transport.Health(probeCtx)
	if h.CheckedAt.IsZero() {
		h.CheckedAt = c.now()
	}
	return h
}

// Breaker exposes the guarding breaker for reporting.
func (c *Client) Breaker() *breaker.CircuitBreaker { return c.breaker }

// Close releases the transport when it holds resources.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
