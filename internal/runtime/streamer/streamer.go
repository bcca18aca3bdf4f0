// Package streamer runs a streaming session: it paces the content generator,
// buffers and batches events, flushes them through the circuit breaker to the
// transport and parks failed events in the dead-letter queue.
package streamer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/config"
	"github.com/drblury/retailstream/internal/runtime/dlq"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/generator"
	"github.com/drblury/retailstream/internal/runtime/ids"
	"github.com/drblury/retailstream/internal/runtime/logging"
	"github.com/drblury/retailstream/internal/runtime/monitor"
	"github.com/drblury/retailstream/internal/runtime/stats"
	"github.com/drblury/retailstream/internal/runtime/transport"
)

// State is the lifecycle position of a streamer.
type State string

const (
	StateIdle      State = "IDLE"
	StateStreaming State = "STREAMING"
	StatePaused    State = "PAUSED"
	StateStopped   State = "STOPPED"
)

const (
	tracerName    = "retailstream/streamer"
	maxSleepSlice = 100 * time.Millisecond
)

// Dependencies are the collaborators a Streamer is composed from. Generator,
// Transport and Logger are required.
type Dependencies struct {
	Generator generator.ContentGenerator
	Transport transport.Transport
	Logger    logging.ServiceLogger
	// Clock defaults to the wall clock.
	Clock Clock
	// Registerer receives the Prometheus collectors. Nil disables metrics.
	Registerer prometheus.Registerer
	// Hooks run after the built-in logging hooks.
	Hooks FlushHooks
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Session identifies one run of the pacing loop.
type Session struct {
	ID        string        `json:"session_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// ControlResult reports the outcome of Pause, Resume or Stop. An operation
// that does not apply in the current state reports Success false with a
// message instead of an error.
type ControlResult struct {
	Success            bool          `json:"success"`
	Message            string        `json:"message"`
	Timestamp          time.Time     `json:"timestamp"`
	State              State         `json:"state"`
	PauseCount         int           `json:"pause_count"`
	TotalPauseDuration time.Duration `json:"total_pause_duration"`
	PausedFor          time.Duration `json:"paused_for,omitempty"`
}

// Streamer owns one streaming session. It can run once; build a new
// Streamer for a new session.
type Streamer struct {
	conf            config.StreamingConfig
	shutdownTimeout time.Duration

	gen     generator.ContentGenerator
	client  *transport.Client
	breaker *breaker.CircuitBreaker
	stats   *stats.Recorder
	dlq     *dlq.Queue
	monitor *monitor.Manager
	gate    *monitor.Gate
	buf     buffer

	clock  Clock
	logger logging.ServiceLogger
	hooks  FlushHooks
	tracer trace.Tracer

	mu         sync.Mutex
	state      State
	starting   bool
	stopping   bool
	stopReason string
	wake       chan struct{}
	session    Session

	// Owned by the pacing goroutine, then by the shutdown flush.
	nextBurst time.Time
	lastFlush time.Time
}

// New wires a streamer for conf. Nothing is started until Run.
func New(conf *config.Config, deps Dependencies) (*Streamer, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if deps.Generator == nil {
		return nil, errspkg.ErrGeneratorRequired
	}
	if deps.Transport == nil {
		return nil, errspkg.ErrTransportRequired
	}
	if deps.Logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Streaming.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	var (
		streamMetrics *stats.Metrics
		dlqMetrics    *dlq.Metrics
	)
	if deps.Registerer != nil {
		streamMetrics = stats.NewMetrics(deps.Registerer)
		if err := streamMetrics.Register(); err != nil {
			return nil, fmt.Errorf("register stream metrics: %w", err)
		}
		dlqMetrics = dlq.NewMetrics(deps.Registerer)
		if err := dlqMetrics.Register(); err != nil {
			return nil, fmt.Errorf("register dlq metrics: %w", err)
		}
	}

	logger := deps.Logger.With(logging.LogFields{"component": "streamer"})
	s := &Streamer{
		conf:            conf.Streaming,
		shutdownTimeout: conf.ShutdownTimeout,
		gen:             deps.Generator,
		clock:           deps.Clock,
		logger:          logger,
		hooks:           LoggingHooks(logger).Merge(deps.Hooks),
		tracer:          deps.Tracer,
		state:           StateIdle,
		wake:            make(chan struct{}),
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = config.DefaultShutdownTimeout
	}

	s.stats = stats.NewRecorder(stats.Options{Metrics: streamMetrics})
	s.breaker = breaker.New(breaker.Settings{
		Name:             "transport",
		Enabled:          conf.Streaming.CircuitBreakerEnabled,
		FailureThreshold: uint32(max(conf.CircuitBreaker.FailureThreshold, 0)),
		ResetTimeout:     conf.CircuitBreaker.ResetTimeout,
		Now:              deps.Clock.Now,
		OnTrip:           s.stats.RecordTrip,
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("Circuit breaker state changed", logging.LogFields{"from": from, "to": to})
			streamMetrics.SetBreakerState(string(to),
				string(breaker.StateClosed), string(breaker.StateOpen), string(breaker.StateHalfOpen))
		},
	})

	client, err := transport.NewClient(deps.Transport, s.breaker, conf.Streaming.BatchTimeout())
	if err != nil {
		return nil, err
	}
	s.client = client

	s.dlq = dlq.New(dlq.Options{
		MaxSize: conf.Streaming.DLQMaxSize,
		Metrics: dlqMetrics,
		Logger:  deps.Logger,
		Now:     deps.Clock.Now,
	})
	s.monitor = monitor.New(monitor.Sources{
		Transport:  client,
		Stats:      s.stats,
		BufferSize: s.buf.Len,
		Breaker:    s.breaker,
		DLQSize:    s.dlq.Len,
	}, monitor.Options{
		Interval:      conf.Streaming.MonitoringInterval(),
		MaxBufferSize: conf.Streaming.MaxBufferSize,
		Logger:        deps.Logger,
		Metrics:       streamMetrics,
		Now:           deps.Clock.Now,
		After:         deps.Clock.After,
	})
	s.gate = s.monitor.Gate()
	return s, nil
}

// Start runs a session and reports whether it ran. It returns false when the
// streamer is already streaming, already finished or failed to initialize.
func (s *Streamer) Start(ctx context.Context, duration time.Duration) bool {
	if err := s.Run(ctx, duration); err != nil {
		s.logger.Error("Streaming session did not run", err, nil)
		return false
	}
	return true
}

// Run initializes the transport and generator, then blocks while the pacing
// and monitoring loops run. The session ends when duration elapses (zero
// means unbounded), Stop is called, a CRITICAL failure occurs or ctx ends.
// The buffer is flushed one last time before Run returns.
func (s *Streamer) Run(ctx context.Context, duration time.Duration) error {
	if err := s.reserve(); err != nil {
		return err
	}
	if err := s.initialize(ctx); err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		return fmt.Errorf("initialize session: %w", err)
	}

	now := s.clock.Now()
	session := Session{ID: ids.NewSessionID(), StartedAt: now, Duration: duration}
	var endAt time.Time
	if duration > 0 {
		endAt = now.Add(duration)
	}

	s.mu.Lock()
	s.session = session
	s.state = StateStreaming
	s.starting = false
	s.mu.Unlock()

	s.stats.Begin(now)
	s.logger.Info("Streaming session started", logging.LogFields{
		"session_id":       session.ID,
		"duration":         duration.String(),
		"emit_interval_ms": s.conf.EmitIntervalMs,
		"burst_size":       s.conf.BurstSize,
		"max_batch_size":   s.conf.MaxBatchSize,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return s.pace(gctx, endAt)
	})
	g.Go(func() error {
		return s.monitor.Run(gctx)
	})
	err := g.Wait()

	s.finish(ctx)
	return err
}

func (s *Streamer) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.starting, s.state == StateStreaming, s.state == StatePaused:
		return errspkg.ErrAlreadyStreaming
	case s.state == StateStopped:
		return errspkg.ErrSessionFinished
	}
	s.starting = true
	return nil
}

func (s *Streamer) initialize(ctx context.Context) error {
	if err := s.client.Init(ctx); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if init, ok := s.gen.(generator.Initializer); ok {
		if err := init.Init(ctx); err != nil {
			return fmt.Errorf("generator: %w", err)
		}
	}
	return nil
}

// finish flushes what is left and marks the session stopped. The flush gets
// its own deadline so a cancelled ctx does not drop buffered events.
func (s *Streamer) finish(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	now := s.clock.Now()
	if f, ok := s.gen.(generator.Finisher); ok {
		s.enqueue(flushCtx, f.Finish(now), now)
	}
	s.flushAll(flushCtx, reasonShutdown)

	s.mu.Lock()
	ended := s.clock.Now()
	s.session.EndedAt = &ended
	s.state = StateStopped
	session := s.session
	reason := s.stopReason
	s.mu.Unlock()

	snap := s.stats.Snapshot()
	s.logger.Info("Streaming session ended", logging.LogFields{
		"session_id":               session.ID,
		"reason":                   reason,
		"events_generated":         snap.EventsGenerated,
		"events_sent_successfully": snap.EventsSentSuccessfully,
		"events_failed":            snap.EventsFailed,
		"dlq_size":                 s.dlq.Len(),
	})
}

// Pause closes the pause gate. The pacing loop suspends at the top of its
// next iteration; buffered events stay buffered until Resume.
func (s *Streamer) Pause() ControlResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := ControlResult{Timestamp: s.clock.Now()}
	switch {
	case s.state == StatePaused:
		res.Message = "streaming is already paused"
	case s.state != StateStreaming:
		res.Message = "streamer is not streaming"
	case s.stopping:
		res.Message = "streamer is stopping"
	default:
		s.gate.Pause()
		s.state = StatePaused
		res.Success = true
		res.Message = "streaming paused"
		s.logger.Info("Streaming paused", logging.LogFields{"session_id": s.session.ID})
	}
	return s.withPauseStats(res)
}

// Resume reopens the pause gate.
func (s *Streamer) Resume() ControlResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := ControlResult{Timestamp: s.clock.Now()}
	switch s.state {
	case StatePaused:
		_, pausedFor, _ := s.gate.Resume()
		s.state = StateStreaming
		res.Success = true
		res.Message = "streaming resumed"
		res.PausedFor = pausedFor
		s.logger.Info("Streaming resumed", logging.LogFields{
			"session_id": s.session.ID,
			"paused_for": pausedFor.String(),
		})
	case StateStreaming:
		res.Message = "streaming is not paused"
	default:
		res.Message = "streamer is not streaming"
	}
	return s.withPauseStats(res)
}

// Stop asks the pacing loop to exit at its next check point. An in-flight
// flush completes first. Run returns once the final flush is done.
func (s *Streamer) Stop() ControlResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := ControlResult{Timestamp: s.clock.Now()}
	switch {
	case s.state == StateStopped:
		res.Message = "streamer already stopped"
	case s.state == StateIdle:
		res.Message = "streamer is not streaming"
	case s.stopping:
		res.Message = "stop already requested"
	default:
		s.requestStopLocked("stop requested")
		res.Success = true
		res.Message = "stop requested"
	}
	return s.withPauseStats(res)
}

func (s *Streamer) requestStop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopping {
		s.requestStopLocked(reason)
	}
}

func (s *Streamer) requestStopLocked(reason string) {
	s.stopping = true
	s.stopReason = reason
	close(s.wake)
	s.logger.Info("Stop requested", logging.LogFields{"session_id": s.session.ID, "reason": reason})
}

func (s *Streamer) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Streamer) withPauseStats(res ControlResult) ControlResult {
	ps := s.gate.Stats()
	res.State = s.state
	res.PauseCount = ps.PauseCount
	res.TotalPauseDuration = ps.TotalPauseDuration
	return res
}

// State reports the lifecycle state.
func (s *Streamer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns the current session. Its ID is empty before Run.
func (s *Streamer) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Streamer) GetStatistics() stats.Statistics {
	return s.stats.Snapshot()
}

func (s *Streamer) GetDLQSummary() dlq.Summary {
	return s.dlq.Summary()
}

// DLQEntries returns the parked events, oldest first.
func (s *Streamer) DLQEntries() []dlq.Entry {
	return s.dlq.Entries()
}

// GetHealthStatus probes the transport and aggregates session health.
func (s *Streamer) GetHealthStatus(ctx context.Context) monitor.HealthStatus {
	return s.monitor.HealthStatus(ctx)
}

// CircuitBreaker reports the breaker bookkeeping.
func (s *Streamer) CircuitBreaker() breaker.Snapshot {
	return s.breaker.Snapshot()
}

// Close releases the transport. Call it after Run returns.
func (s *Streamer) Close() error {
	return s.client.Close()
}
