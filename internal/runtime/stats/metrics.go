package stats

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "retailstream"
	subsystem = "stream"
)

// Metrics mirrors the statistics into Prometheus collectors.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	generated          *prometheus.CounterVec
	sent               prometheus.Counter
	failed             *prometheus.CounterVec
	batches            prometheus.Counter
	bytes              prometheus.Counter
	connectionFailures prometheus.Counter
	trips              prometheus.Counter
	retriedFromDLQ     prometheus.Counter
	eventsPerSecond    prometheus.Gauge
	bufferSize         prometheus.Gauge
	breakerState       *prometheus.GaugeVec
	flushDuration      prometheus.Histogram
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
}

// NewMetrics creates the collectors. A nil registerer selects the default
// Prometheus registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer: registerer,
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "events_generated_total", Help: "Events produced by the content generator",
		}, []string{"event_type"}),
		sent: counter("events_sent_total", "Events accepted by the transport"),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "events_failed_total", Help: "Events whose flush failed, by error category",
		}, []string{"category"}),
		batches:            counter("batches_sent_total", "Batches accepted by the transport"),
		bytes:              counter("bytes_sent_total", "Estimated JSON bytes of accepted events"),
		connectionFailures: counter("connection_failures_total", "Failed transport health probes"),
		trips:              counter("circuit_breaker_trips_total", "Circuit breaker CLOSED to OPEN transitions"),
		retriedFromDLQ:     counter("dlq_retried_total", "Events delivered by dead letter queue retries"),
		eventsPerSecond:    gauge("events_per_second", "Delivery rate over the last monitoring window"),
		bufferSize:         gauge("buffer_size", "Events waiting in the flush buffer"),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "circuit_breaker_state", Help: "1 for the current circuit breaker state, 0 otherwise",
		}, []string{"state"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "flush_duration_seconds", Help: "Duration of transport sends",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{
		m.generated, m.sent, m.failed, m.batches, m.bytes,
		m.connectionFailures, m.trips, m.retriedFromDLQ,
		m.eventsPerSecond, m.bufferSize, m.breakerState, m.flushDuration,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

// SetBufferSize publishes the current buffer length.
func (m *Metrics) SetBufferSize(n int) {
	if m == nil {
		return
	}
	m.bufferSize.Set(float64(n))
}

// SetBreakerState marks state as current among states.
func (m *Metrics) SetBreakerState(state string, states ...string) {
	if m == nil {
		return
	}
	for _, s := range states {
		m.breakerState.WithLabelValues(s).Set(0)
	}
	m.breakerState.WithLabelValues(state).Set(1)
}
