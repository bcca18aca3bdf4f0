package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/classify"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/events"
)

type fakeTransport struct {
	mu      sync.Mutex
	send    func(ctx context.Context, batch []events.Envelope) error
	calls   int
	health  Health
	inits   int
	closed  bool
	initErr error
}

func (f *fakeTransport) Send(ctx context.Context, batch []events.Envelope) error {
	f.mu.Lock()
	f.calls++
	send := f.send
	f.mu.Unlock()
	if send == nil {
		return nil
	}
	return send(ctx, batch)
}

func (f *fakeTransport) Health(context.Context) Health { return f.health }

func (f *fakeTransport) Init(context.Context) error {
	f.inits++
	return f.initErr
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func sampleBatch(n int) []events.Envelope {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]events.Envelope, n)
	for i := range out {
		out[i] = events.New(events.StoreOpenedPayload{StoreID: "store-1", OperationTime: at}, at)
	}
	return out
}

func TestNewClientRequiresTransport(t *testing.T) {
	_, err := NewClient(nil, nil, time.Second)
	assert.ErrorIs(t, err, errspkg.ErrTransportRequired)
}

func TestClientSendEmptyBatchSkipsTransport(t *testing.T) {
	ft := &fakeTransport{}
	c, err := NewClient(ft, nil, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), nil))
	assert.Zero(t, ft.Calls())
}

func TestClientOpenBreakerRejectsWithoutIO(t *testing.T) {
	boom := errors.New("connection refused")
	ft := &fakeTransport{send: func(context.Context, []events.Envelope) error { return boom }}
	cb := breaker.New(breaker.Settings{Enabled: true, FailureThreshold: 2, ResetTimeout: time.Hour})
	c, err := NewClient(ft, cb, time.Second)
	require.NoError(t, err)

	batch := sampleBatch(1)
	assert.ErrorIs(t, c.Send(context.Background(), batch), boom)
	assert.ErrorIs(t, c.Send(context.Background(), batch), boom)
	assert.Equal(t, breaker.StateOpen, cb.State())

	err = c.Send(context.Background(), batch)
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.Equal(t, 2, ft.Calls())
	assert.Same(t, cb, c.Breaker())
}

func TestClientSendTurnsTransportPanicIntoFailure(t *testing.T) {
	ft := &fakeTransport{send: func(context.Context, []events.Envelope) error { panic("nil publisher") }}
	cb := breaker.New(breaker.Settings{Enabled: true, FailureThreshold: 1, ResetTimeout: time.Hour})
	c, err := NewClient(ft, cb, time.Second)
	require.NoError(t, err)

	err = c.Send(context.Background(), sampleBatch(2))
	require.Error(t, err)
	assert.ErrorContains(t, err, "transport panic: nil publisher")
	assert.Equal(t, classify.CategoryUnknown, classify.Classify(err).Category)
	assert.Equal(t, breaker.StateOpen, cb.State(), "a panic counts as a breaker failure")
}

func TestClientSendTimeoutIsNetworkFailure(t *testing.T) {
	ft := &fakeTransport{send: func(ctx context.Context, _ []events.Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c, err := NewClient(ft, nil, 20*time.Millisecond)
	require.NoError(t, err)

	err = c.Send(context.Background(), sampleBatch(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, classify.ErrTimeout)

	classified := classify.Classify(err)
	assert.Equal(t, classify.CategoryNetwork, classified.Category)
	assert.True(t, classified.Retryable)
}

func TestClientDisabledBreakerPassesEveryCall(t *testing.T) {
	boom := errors.New("nope")
	ft := &fakeTransport{send: func(context.Context, []events.Envelope) error { return boom }}
	c, err := NewClient(ft, breaker.New(breaker.Settings{Enabled: false, FailureThreshold: 1}), time.Second)
	require.NoError(t, err)

	for range 5 {
		assert.ErrorIs(t, c.Send(context.Background(), sampleBatch(1)), boom)
	}
	assert.Equal(t, 5, ft.Calls())
}

func TestClientHealthInitAndClose(t *testing.T) {
	ft := &fakeTransport{health: Health{Healthy: false, Detail: "broker down"}}
	c, err := NewClient(ft, nil, time.Second)
	require.NoError(t, err)

	h := c.Health(context.Background())
	assert.False(t, h.Healthy)
	assert.Equal(t, "broker down", h.Detail)
	assert.False(t, h.CheckedAt.IsZero())

	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, 1, ft.inits)

	require.NoError(t, c.Close())
	assert.True(t, ft.closed)
}

func TestClientInitError(t *testing.T) {
	ft := &fakeTransport{initErr: errors.New("no route")}
	c, err := NewClient(ft, nil, time.Second)
	require.NoError(t, err)
	assert.EqualError(t, c.Init(context.Background()), "no route")
}

func TestNoopCountsAndIsHealthy(t *testing.T) {
	n := &Noop{}
	require.NoError(t, n.Send(context.Background(), sampleBatch(3)))
	assert.Equal(t, int64(3), n.Sent())
	assert.True(t, n.Health(context.Background()).Healthy)
}
