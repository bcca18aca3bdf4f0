// Package stats keeps the streaming counters behind one mutex and mirrors
// them into Prometheus.
package stats

import (
	"maps"
	"sync"
	"time"

	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/events"
)

// DefaultSummaryEvery is how many generated events separate two statistics
// summaries.
const DefaultSummaryEvery = 1000

// Statistics is a consistent copy of the counters.
type Statistics struct {
	EventsGenerated        uint64                       `json:"events_generated"`
	EventsSentSuccessfully uint64                       `json:"events_sent_successfully"`
	EventsFailed           uint64                       `json:"events_failed"`
	BatchesSent            uint64                       `json:"batches_sent"`
	ConnectionFailures     uint64                       `json:"connection_failures"`
	CircuitBreakerTrips    uint64                       `json:"circuit_breaker_trips"`
	EventsRetriedFromDLQ   uint64                       `json:"events_retried_from_dlq"`
	EventsPerSecond        float64                      `json:"events_per_second"`
	BytesSent              uint64                       `json:"bytes_sent"`
	LastEventTime          *time.Time                   `json:"last_event_time,omitempty"`
	EventTypeCounts        map[events.EventType]uint64  `json:"event_type_counts"`
	ErrorCounts            map[classify.Category]uint64 `json:"error_counts"`
	FlushLatency           LatencyMetrics               `json:"flush_latency"`
}

// ErrorRate is events_failed / events_generated, or 0 before anything was
// generated.
func (s Statistics) ErrorRate() float64 {
	if s.EventsGenerated == 0 {
		return 0
	}
	return float64(s.EventsFailed) / float64(s.EventsGenerated)
}

// Options configures a Recorder.
type Options struct {
	// Metrics may be nil.
	Metrics        *Metrics
	LatencySamples int
	SummaryEvery   uint64
}

// Recorder is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	s       Statistics
	latency *latencyWindow

	rateAt   time.Time
	rateSent uint64

	summaryEvery   uint64
	summaryEmitted uint64

	metrics *Metrics
}

// NewRecorder returns zeroed counters.
func NewRecorder(opts Options) *Recorder {
	if opts.SummaryEvery == 0 {
		opts.SummaryEvery = DefaultSummaryEvery
	}
	return &Recorder{
		s: Statistics{
			EventTypeCounts: make(map[events.EventType]uint64),
			ErrorCounts:     make(map[classify.Category]uint64),
		},
		latency:      newLatencyWindow(opts.LatencySamples),
		summaryEvery: opts.SummaryEvery,
		metrics:      opts.Metrics,
	}
}

// Begin anchors the rate window at the session start.
func (r *Recorder) Begin(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateAt = at
	r.rateSent = r.s.EventsSentSuccessfully
}

// RecordGenerated counts a burst.
func (r *Recorder) RecordGenerated(burst []events.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.EventsGenerated += uint64(len(burst))
	for _, env := range burst {
		r.s.EventTypeCounts[env.EventType]++
		if r.metrics != nil {
			r.metrics.generated.WithLabelValues(string(env.EventType)).Inc()
		}
	}
}

// RecordSent counts a batch accepted by the transport.
func (r *Recorder) RecordSent(count, bytes int, took time.Duration, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.EventsSentSuccessfully += uint64(count)
	r.s.BatchesSent++
	r.s.BytesSent += uint64(bytes)
	last := at
	r.s.LastEventTime = &last
	r.latency.Add(took)

	if r.metrics != nil {
		r.metrics.sent.Add(float64(count))
		r.metrics.batches.Inc()
		r.metrics.bytes.Add(float64(bytes))
		r.metrics.flushDuration.Observe(took.Seconds())
	}
}

// RecordFailed counts events whose flush failed.
func (r *Recorder) RecordFailed(count int, category classify.Category, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.EventsFailed += uint64(count)
	r.s.ErrorCounts[category]++
	r.latency.Add(took)

	if r.metrics != nil {
		r.metrics.failed.WithLabelValues(string(category)).Add(float64(count))
		r.metrics.flushDuration.Observe(took.Seconds())
	}
}

// RecordRetriedFromDLQ counts events a dead letter retry delivered. They
// also count as sent successfully.
func (r *Recorder) RecordRetriedFromDLQ(count, bytes int, at time.Time) {
	if count <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.EventsRetriedFromDLQ += uint64(count)
	r.s.EventsSentSuccessfully += uint64(count)
	r.s.BytesSent += uint64(bytes)
	last := at
	r.s.LastEventTime = &last

	if r.metrics != nil {
		r.metrics.retriedFromDLQ.Add(float64(count))
		r.metrics.sent.Add(float64(count))
		r.metrics.bytes.Add(float64(bytes))
	}
}

func (r *Recorder) RecordConnectionFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.ConnectionFailures++
	if r.metrics != nil {
		r.metrics.connectionFailures.Inc()
	}
}

func (r *Recorder) RecordTrip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.CircuitBreakerTrips++
	if r.metrics != nil {
		r.metrics.trips.Inc()
	}
}

// RefreshRate recomputes events_per_second over the window since the last
// refresh (or Begin) and starts a new window at now.
func (r *Recorder) RefreshRate(now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.rateAt.IsZero() {
		if elapsed := now.Sub(r.rateAt).Seconds(); elapsed > 0 {
			r.s.EventsPerSecond = float64(r.s.EventsSentSuccessfully-r.rateSent) / elapsed
		}
	}
	r.rateAt = now
	r.rateSent = r.s.EventsSentSuccessfully
	if r.metrics != nil {
		r.metrics.eventsPerSecond.Set(r.s.EventsPerSecond)
	}
	return r.s.EventsPerSecond
}

// SummaryDue reports, once per crossing, that events_generated passed
// another multiple of the summary interval.
func (r *Recorder) SummaryDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.s.EventsGenerated / r.summaryEvery
	if bucket > r.summaryEmitted {
		r.summaryEmitted = bucket
		return true
	}
	return false
}

// Snapshot returns a deep copy.
func (r *Recorder) Snapshot() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.s
	out.EventTypeCounts = maps.Clone(r.s.EventTypeCounts)
	out.ErrorCounts = maps.Clone(r.s.ErrorCounts)
	if r.s.LastEventTime != nil {
		last := *r.s.LastEventTime
		out.LastEventTime = &last
	}
	out.FlushLatency = r.latency.Snapshot()
	return out
}
