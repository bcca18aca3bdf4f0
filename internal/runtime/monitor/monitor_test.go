package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/events"
	"github.com/drblury/retailstream/internal/runtime/stats"
	"github.com/drblury/retailstream/internal/runtime/transport"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

type stubProber struct {
	mu     sync.Mutex
	health transport.Health
	calls  int
}

func (s *stubProber) Health(context.Context) transport.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.health
}

func generated(n int) []events.Envelope {
	return make([]events.Envelope, n)
}

func TestGatePauseResumeBookkeeping(t *testing.T) {
	clock := newManualClock()
	g := NewGate(clock.Now)

	assert.True(t, g.Wait(context.Background(), nil))

	ok, s := g.Pause()
	assert.True(t, ok)
	assert.True(t, s.Paused)
	assert.Equal(t, 1, s.PauseCount)

	again, s := g.Pause()
	assert.False(t, again)
	assert.Equal(t, 1, s.PauseCount)

	clock.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, g.Stats().CurrentlyPausedDuration)

	ok, pausedFor, s := g.Resume()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, pausedFor)
	assert.Equal(t, 3*time.Second, s.TotalPauseDuration)
	assert.Zero(t, s.CurrentlyPausedDuration)
	assert.False(t, s.Paused)

	ok, _, _ = g.Resume()
	assert.False(t, ok)
}

func TestGateWaitBlocksUntilResume(t *testing.T) {
	g := NewGate(nil)
	g.Pause()

	released := make(chan bool, 1)
	go func() { released <- g.Wait(context.Background(), nil) }()

	select {
	case <-released:
		t.Fatal("wait returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	g.Resume()
	select {
	case open := <-released:
		assert.True(t, open)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after resume")
	}
}

func TestGateWaitWakesOnStop(t *testing.T) {
	g := NewGate(nil)
	g.Pause()

	wake := make(chan struct{})
	close(wake)
	assert.False(t, g.Wait(context.Background(), wake))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, g.Wait(ctx, nil))
	assert.True(t, g.Paused())
}

func TestTickCountsUnhealthyTransport(t *testing.T) {
	clock := newManualClock()
	rec := stats.NewRecorder(stats.Options{})
	rec.Begin(clock.Now())
	prober := &stubProber{health: transport.Health{Healthy: false, Detail: "connection refused"}}
	m := New(Sources{Transport: prober, Stats: rec}, Options{Now: clock.Now})

	rec.RecordSent(50, 0, time.Millisecond, clock.Now())
	clock.Advance(10 * time.Second)
	m.Tick(context.Background())

	s := rec.Snapshot()
	assert.Equal(t, uint64(1), s.ConnectionFailures)
	assert.InDelta(t, 5.0, s.EventsPerSecond, 1e-9)

	prober.health = transport.Health{Healthy: true}
	m.Tick(context.Background())
	assert.Equal(t, uint64(1), rec.Snapshot().ConnectionFailures)
}

func TestTickRecoversPanics(t *testing.T) {
	m := New(Sources{BufferSize: func() int { panic("boom") }}, Options{})
	assert.NotPanics(t, func() { m.Tick(context.Background()) })
}

func TestHealthStatusAggregates(t *testing.T) {
	rec := stats.NewRecorder(stats.Options{})
	prober := &stubProber{health: transport.Health{Healthy: true, Detail: "ok"}}
	buffer := 3
	cb := breaker.New(breaker.Settings{Enabled: true})
	m := New(Sources{
		Transport:  prober,
		Stats:      rec,
		BufferSize: func() int { return buffer },
		Breaker:    cb,
		DLQSize:    func() int { return 4 },
	}, Options{MaxBufferSize: 10})

	rec.RecordGenerated(generated(100))
	rec.RecordFailed(4, classify.CategoryNetwork, time.Millisecond)

	h := m.HealthStatus(context.Background())
	assert.True(t, h.OverallHealthy)
	assert.True(t, h.Transport.Healthy)
	assert.Equal(t, BufferHealth{Healthy: true, Size: 3, MaxSize: 10}, h.Buffer)
	assert.InDelta(t, 0.04, h.ErrorRate.Rate, 1e-9)
	assert.True(t, h.ErrorRate.Healthy)
	assert.Equal(t, breaker.StateClosed, h.CircuitBreaker.State)
	assert.Equal(t, 4, h.DLQSize)
	assert.Positive(t, h.Resources.Goroutines)
	assert.Zero(t, rec.Snapshot().ConnectionFailures)

	rec.RecordFailed(1, classify.CategoryNetwork, time.Millisecond)
	h = m.HealthStatus(context.Background())
	assert.False(t, h.ErrorRate.Healthy)
	assert.False(t, h.OverallHealthy)
}

func TestHealthStatusBufferAtLimitIsUnhealthy(t *testing.T) {
	m := New(Sources{
		Transport:  &stubProber{health: transport.Health{Healthy: true}},
		BufferSize: func() int { return 10 },
	}, Options{MaxBufferSize: 10})

	h := m.HealthStatus(context.Background())
	assert.False(t, h.Buffer.Healthy)
	assert.False(t, h.OverallHealthy)
}

func TestHealthStatusWithoutTransport(t *testing.T) {
	h := New(Sources{}, Options{}).HealthStatus(context.Background())
	assert.False(t, h.Transport.Healthy)
	assert.False(t, h.OverallHealthy)
}

func TestRunStopsWithContext(t *testing.T) {
	prober := &stubProber{health: transport.Health{Healthy: true}}
	m := New(Sources{Transport: prober}, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		prober.mu.Lock()
		defer prober.mu.Unlock()
		return prober.calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestRunTicksOnInjectedTimer(t *testing.T) {
	prober := &stubProber{health: transport.Health{Healthy: true}}
	ticks := make(chan time.Time)
	var waited []time.Duration
	var mu sync.Mutex
	m := New(Sources{Transport: prober}, Options{
		Interval: time.Hour,
		After: func(d time.Duration) <-chan time.Time {
			mu.Lock()
			waited = append(waited, d)
			mu.Unlock()
			return ticks
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	ticks <- time.Time{}
	ticks <- time.Time{}
	require.Eventually(t, func() bool {
		prober.mu.Lock()
		defer prober.mu.Unlock()
		return prober.calls == 2
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	for _, d := range waited {
		assert.Equal(t, time.Hour, d)
	}
}

func TestResourceTrackerSamples(t *testing.T) {
	clock := newManualClock()
	r := NewResourceTracker(clock.Now)

	first := r.Snapshot()
	assert.Zero(t, first.CPUPercent)
	assert.Positive(t, first.MemoryBytes)
	assert.Positive(t, first.Goroutines)

	// No wall time elapsed on the clock.
	assert.Zero(t, r.Snapshot().CPUPercent)

	clock.Advance(time.Second)
	assert.GreaterOrEqual(t, r.Snapshot().CPUPercent, 0.0)
}
