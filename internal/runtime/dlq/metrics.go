package dlq

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports dead-letter queue activity to Prometheus, labelled by
// event type.
type Metrics struct {
	mu sync.Mutex

	current map[string]int

	messagesTotal   *prometheus.CounterVec
	messagesCurrent *prometheus.GaugeVec
	replayedTotal   *prometheus.CounterVec
	evictedTotal    *prometheus.CounterVec
	ageSecondsHist  *prometheus.HistogramVec
	retryCountHist  *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retailstream",
			Subsystem: "dlq",
			Name:      name,
			Help:      help,
		},
		[]string{"event_type"},
	)
}

func newHistogramVec(name, help string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retailstream",
			Subsystem: "dlq",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		[]string{"event_type"},
	)
}

// NewMetrics creates the collectors. A nil registerer selects the default
// Prometheus registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		current:       make(map[string]int),
		registerer:    registerer,
		messagesTotal: newCounterVec("messages_total", "Total number of events parked in the dead letter queue"),
		messagesCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "retailstream",
			Subsystem: "dlq",
			Name:      "messages_current",
			Help:      "Current number of events in the dead letter queue",
		}, []string{"event_type"}),
		replayedTotal:  newCounterVec("replayed_total", "Total number of events delivered by a dead letter queue retry"),
		evictedTotal:   newCounterVec("evicted_total", "Total number of events dropped from the head of a full dead letter queue"),
		ageSecondsHist: newHistogramVec("message_age_seconds", "Time from first failure to successful replay", []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600}),
		retryCountHist: newHistogramVec("retry_count", "Retries an event needed before it was replayed", []float64{0, 1, 2, 3, 5, 10}),
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
		m.messagesTotal,
		m.messagesCurrent,
		m.replayedTotal,
		m.evictedTotal,
		m.ageSecondsHist,
		m.retryCountHist,
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

func (m *Metrics) recordParked(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current[eventType]++
	m.messagesTotal.WithLabelValues(eventType).Inc()
	m.messagesCurrent.WithLabelValues(eventType).Set(float64(m.current[eventType]))
}

func (m *Metrics) recordEvicted(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decrement(eventType)
	m.evictedTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) recordReplayed(eventType string, retryCount int, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decrement(eventType)
	m.replayedTotal.WithLabelValues(eventType).Inc()
	m.retryCountHist.WithLabelValues(eventType).Observe(float64(retryCount))
	m.ageSecondsHist.WithLabelValues(eventType).Observe(age.Seconds())
}

func (m *Metrics) decrement(eventType string) {
	if m.current[eventType] > 0 {
		m.current[eventType]--
	}
	m.messagesCurrent.WithLabelValues(eventType).Set(float64(m.current[eventType]))
}

// Current reports the gauge value for an event type.
func (m *Metrics) Current(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[eventType]
}

// Reset clears every collector (useful for testing).
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = make(map[string]int)
	m.messagesTotal.Reset()
	m.messagesCurrent.Reset()
	m.replayedTotal.Reset()
	m.evictedTotal.Reset()
	m.ageSecondsHist.Reset()
	m.retryCountHist.Reset()
}
