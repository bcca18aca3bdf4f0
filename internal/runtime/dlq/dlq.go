// Package dlq holds events whose delivery failed until a retry succeeds or
// the retry budget runs out. The queue is a bounded FIFO: when full, the
// oldest entries are evicted to make room.
package dlq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/events"
	"github.com/drblury/retailstream/internal/runtime/logging"
)

// DefaultMaxSize bounds a queue built without an explicit size.
const DefaultMaxSize = 1000

// Entry is one parked event.
type Entry struct {
	ID                    uint64            `json:"id"`
	Event                 events.Envelope   `json:"event"`
	ErrorMessage          string            `json:"error_message"`
	ErrorCategory         classify.Category `json:"error_category"`
	ErrorSeverity         classify.Severity `json:"error_severity"`
	FirstFailureTimestamp time.Time         `json:"first_failure_timestamp"`
	RetryCount            int               `json:"retry_count"`
	LastRetryTimestamp    *time.Time        `json:"last_retry_timestamp,omitempty"`
}

// SendFunc delivers one retried event.
type SendFunc func(ctx context.Context, batch []events.Envelope) error

// RetryResult reports one RetryAll pass.
type RetryResult struct {
	TotalAttempted int `json:"total_attempted"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	StillInDLQ     int `json:"still_in_dlq"`
}

// Summary is a read-only aggregate over the queue.
type Summary struct {
	Size                 int                       `json:"size"`
	ByCategory           map[classify.Category]int `json:"by_category"`
	BySeverity           map[classify.Severity]int `json:"by_severity"`
	OldestEntryTimestamp *time.Time                `json:"oldest_entry_timestamp,omitempty"`
	NewestEntryTimestamp *time.Time                `json:"newest_entry_timestamp,omitempty"`
	TotalEvicted         uint64                    `json:"total_evicted"`
}

// Options configures a Queue.
type Options struct {
	MaxSize int
	// Metrics may be nil.
	Metrics *Metrics
	Logger  logging.ServiceLogger
	Now     func() time.Time
}

// Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	nextID  uint64
	evicted uint64

	// retryMu serializes RetryAll passes.
	retryMu sync.Mutex

	maxSize int
	metrics *Metrics
	logger  logging.ServiceLogger
	now     func() time.Time
}

// New creates an empty queue.
func New(opts Options) *Queue {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		maxSize: opts.MaxSize,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// Offer parks env with a zero retry count, evicting from the head first when
// the queue is full. It returns the stored entry.
func (q *Queue) Offer(env events.Envelope, failure *classify.StreamingError) Entry {
	if failure == nil {
		failure = classify.Classify(errors.New("unclassified failure"))
	}

	q.mu.Lock()
	var dropped []Entry
	for len(q.entries) >= q.maxSize {
		dropped = append(dropped, q.entries[0])
		q.entries[0] = Entry{}
		q.entries = q.entries[1:]
		q.evicted++
	}
	q.nextID++
	entry := Entry{
		ID:                    q.nextID,
		Event:                 env,
		ErrorMessage:          failure.Message,
		ErrorCategory:         failure.Category,
		ErrorSeverity:         failure.Severity,
		FirstFailureTimestamp: q.now(),
	}
	q.entries = append(q.entries, entry)
	q.mu.Unlock()

	for _, d := range dropped {
		q.logger.Warn("Dead letter queue full, evicted oldest entry", logging.LogFields{
			"trace_id":   d.Event.TraceID,
			"event_type": d.Event.EventType,
			"max_size":   q.maxSize,
		})
		if q.metrics != nil {
			q.metrics.recordEvicted(string(d.Event.EventType))
		}
	}
	if q.metrics != nil {
		q.metrics.recordParked(string(env.EventType))
	}
	return entry
}

type retryOutcome struct {
	delivered bool
	counted   bool
	at        time.Time
}

// RetryAll tries every entry whose retry count is below maxRetries once,
// each as its own single-event batch. Delivered entries leave the queue;
// failed ones stay with their retry count incremented. Entries at or above
// maxRetries are reported as failed without a send. A rejection by an open
// circuit breaker does not spend a retry. Sends run without holding the
// queue lock.
func (q *Queue) RetryAll(ctx context.Context, maxRetries int, send SendFunc) RetryResult {
	q.retryMu.Lock()
	defer q.retryMu.Unlock()

	snapshot := q.Entries()
	var result RetryResult
	outcomes := make(map[uint64]retryOutcome, len(snapshot))

	for _, entry := range snapshot {
		if ctx.Err() != nil {
			break
		}
		result.TotalAttempted++
		if entry.RetryCount >= maxRetries {
			result.Failed++
			continue
		}

		err := send(ctx, []events.Envelope{entry.Event})
		if err == nil {
			result.Succeeded++
			outcomes[entry.ID] = retryOutcome{delivered: true}
			continue
		}

		result.Failed++
		outcomes[entry.ID] = retryOutcome{
			counted: !errors.Is(err, breaker.ErrCircuitOpen),
			at:      q.now(),
		}
		q.logger.Debug("Dead letter retry failed", logging.LogFields{
			"trace_id":    entry.Event.TraceID,
			"retry_count": entry.RetryCount,
			"error":       err.Error(),
		})
	}

	snapshotIDs := make(map[uint64]struct{}, len(snapshot))
	for _, entry := range snapshot {
		snapshotIDs[entry.ID] = struct{}{}
	}

	var replayed []Entry
	q.mu.Lock()
	kept := q.entries[:0]
	for _, entry := range q.entries {
		outcome, touched := outcomes[entry.ID]
		switch {
		case touched && outcome.delivered:
			replayed = append(replayed, entry)
			continue
		case touched && outcome.counted:
			entry.RetryCount++
			at := outcome.at
			entry.LastRetryTimestamp = &at
		}
		if _, ok := snapshotIDs[entry.ID]; ok {
			result.StillInDLQ++
		}
		kept = append(kept, entry)
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = Entry{}
	}
	q.entries = kept
	q.mu.Unlock()

	if q.metrics != nil {
		now := q.now()
		for _, entry := range replayed {
			q.metrics.recordReplayed(string(entry.Event.EventType), entry.RetryCount, now.Sub(entry.FirstFailureTimestamp))
		}
	}
	return result
}

// Entries returns a copy of the queue in FIFO order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// MaxSize reports the bound.
func (q *Queue) MaxSize() int { return q.maxSize }

// Evicted reports how many entries were dropped from the head so far.
func (q *Queue) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Summary aggregates the queue without modifying it.
func (q *Queue) Summary() Summary {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Summary{
		Size:         len(q.entries),
		ByCategory:   make(map[classify.Category]int),
		BySeverity:   make(map[classify.Severity]int),
		TotalEvicted: q.evicted,
	}
	for i, entry := range q.entries {
		s.ByCategory[entry.ErrorCategory]++
		s.BySeverity[entry.ErrorSeverity]++

		ts := entry.FirstFailureTimestamp
		if i == 0 || ts.Before(*s.OldestEntryTimestamp) {
			s.OldestEntryTimestamp = &ts
		}
		if i == 0 || ts.After(*s.NewestEntryTimestamp) {
			s.NewestEntryTimestamp = &ts
		}
	}
	return s
}
