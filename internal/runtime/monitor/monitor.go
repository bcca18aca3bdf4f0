// Package monitor runs the second loop of a streaming session: it refreshes
// the delivery rate, probes the transport, logs periodic summaries and
// aggregates health. It also owns the pause gate and its bookkeeping.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/logging"
	"github.com/drblury/retailstream/internal/runtime/stats"
	"github.com/drblury/retailstream/internal/runtime/transport"
)

const (
	DefaultInterval = 30 * time.Second
	// DefaultErrorRateThreshold is the failed/generated ratio at which the
	// session is reported unhealthy.
	DefaultErrorRateThreshold = 0.05
)

// Prober reports transport liveness.
type Prober interface {
	Health(ctx context.Context) transport.Health
}

// Sources are the pieces of session state the manager reads.
type Sources struct {
	Transport  Prober
	Stats      *stats.Recorder
	BufferSize func() int
	// Breaker and DLQSize may be nil.
	Breaker *breaker.CircuitBreaker
	DLQSize func() int
}

// Options tunes the manager.
type Options struct {
	Interval           time.Duration
	MaxBufferSize      int
	ErrorRateThreshold float64
	Logger             logging.ServiceLogger
	// Metrics may be nil.
	Metrics *stats.Metrics
	Now     func() time.Time
	// After paces the loop. Defaults to time.After.
	After func(time.Duration) <-chan time.Time
}

// BufferHealth is healthy while the buffer is below its bound.
type BufferHealth struct {
	Healthy bool `json:"healthy"`
	Size    int  `json:"size"`
	MaxSize int  `json:"max_size"`
}

// ErrorRateHealth is healthy while failed/generated stays below Threshold.
type ErrorRateHealth struct {
	Healthy   bool    `json:"healthy"`
	Rate      float64 `json:"rate"`
	Threshold float64 `json:"threshold"`
}

// HealthStatus aggregates every health signal. OverallHealthy combines the
// transport, buffer and error rate checks.
type HealthStatus struct {
	OverallHealthy bool             `json:"overall_healthy"`
	Transport      transport.Health `json:"transport"`
	Buffer         BufferHealth     `json:"buffer"`
	ErrorRate      ErrorRateHealth  `json:"error_rate"`
	CircuitBreaker breaker.Snapshot `json:"circuit_breaker"`
	DLQSize        int              `json:"dlq_size"`
	Pause          PauseStats       `json:"pause"`
	Resources      ResourceUsage    `json:"resources"`
	CheckedAt      time.Time        `json:"checked_at"`
}

// Manager is safe for concurrent use.
type Manager struct {
	src       Sources
	opts      Options
	gate      *Gate
	resources *ResourceTracker
	logger    logging.ServiceLogger
}

// New builds a manager with an open pause gate.
func New(src Sources, opts Options) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ErrorRateThreshold <= 0 {
		opts.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if src.BufferSize == nil {
		src.BufferSize = func() int { return 0 }
	}
	return &Manager{
		src:       src,
		opts:      opts,
		gate:      NewGate(opts.Now),
		resources: NewResourceTracker(opts.Now),
		logger:    opts.Logger.With(logging.LogFields{"component": "monitor"}),
	}
}

// Gate returns the pause gate the pacing loop waits on.
func (m *Manager) Gate() *Gate { return m.gate }

// Run ticks every interval until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.opts.After(m.opts.Interval):
			m.Tick(ctx)
		}
	}
}

// Tick runs one monitoring pass. Failures are logged, never returned.
func (m *Manager) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Monitoring iteration panicked", fmt.Errorf("panic: %v", r), nil)
		}
	}()

	now := m.opts.Now()
	if m.src.Stats != nil {
		eps := m.src.Stats.RefreshRate(now)
		m.logger.Debug("Delivery rate refreshed", logging.LogFields{"events_per_second": eps})
	}

	m.MaybeLogSummary()

	if m.src.Transport != nil {
		h := m.src.Transport.Health(ctx)
		if !h.Healthy {
			if m.src.Stats != nil {
				m.src.Stats.RecordConnectionFailure()
			}
			m.logger.Warn("Transport health check failed", logging.LogFields{"detail": h.Detail})
		}
	}

	m.opts.Metrics.SetBufferSize(m.src.BufferSize())
	if m.src.Breaker != nil {
		m.opts.Metrics.SetBreakerState(string(m.src.Breaker.State()),
			string(breaker.StateClosed), string(breaker.StateOpen), string(breaker.StateHalfOpen))
	}
}

// MaybeLogSummary logs the statistics once each time another batch of
// generated events has accumulated.
func (m *Manager) MaybeLogSummary() {
	if m.src.Stats == nil || !m.src.Stats.SummaryDue() {
		return
	}
	s := m.src.Stats.Snapshot()
	m.logger.Info("Streaming statistics", logging.LogFields{
		"events_generated":         s.EventsGenerated,
		"events_sent_successfully": s.EventsSentSuccessfully,
		"events_failed":            s.EventsFailed,
		"batches_sent":             s.BatchesSent,
		"bytes_sent":               s.BytesSent,
		"events_per_second":        s.EventsPerSecond,
		"connection_failures":      s.ConnectionFailures,
		"circuit_breaker_trips":    s.CircuitBreakerTrips,
		"buffer_size":              m.src.BufferSize(),
	})
}

// HealthStatus probes the transport and aggregates the session health.
// It does not count connection failures; only Tick does.
func (m *Manager) HealthStatus(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Pause:     m.gate.Stats(),
		Resources: m.resources.Snapshot(),
		CheckedAt: m.opts.Now(),
	}

	if m.src.Transport != nil {
		status.Transport = m.src.Transport.Health(ctx)
	} else {
		status.Transport = transport.Health{Healthy: false, Detail: "no transport", CheckedAt: status.CheckedAt}
	}

	size := m.src.BufferSize()
	status.Buffer = BufferHealth{
		Size:    size,
		MaxSize: m.opts.MaxBufferSize,
		Healthy: m.opts.MaxBufferSize <= 0 || size < m.opts.MaxBufferSize,
	}

	var rate float64
	if m.src.Stats != nil {
		rate = m.src.Stats.Snapshot().ErrorRate()
	}
	status.ErrorRate = ErrorRateHealth{
		Rate:      rate,
		Threshold: m.opts.ErrorRateThreshold,
		Healthy:   rate < m.opts.ErrorRateThreshold,
	}

	if m.src.Breaker != nil {
		status.CircuitBreaker = m.src.Breaker.Snapshot()
	}
	if m.src.DLQSize != nil {
		status.DLQSize = m.src.DLQSize()
	}

	status.OverallHealthy = status.Transport.Healthy && status.Buffer.Healthy && status.ErrorRate.Healthy
	return status
}
