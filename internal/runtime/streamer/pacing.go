package streamer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/codec"
	"github.com/drblury/retailstream/internal/runtime/dlq"
	"github.com/drblury/retailstream/internal/runtime/events"
	"github.com/drblury/retailstream/internal/runtime/ids"
	"github.com/drblury/retailstream/internal/runtime/logging"
)

// Flush reasons reported to hooks and spans.
const (
	reasonBatchFull    = "batch_full"
	reasonBatchTimeout = "batch_timeout"
	reasonBackpressure = "backpressure"
	reasonShutdown     = "shutdown"
)

const initialBackoff = 100 * time.Millisecond

// pace is the pacing loop. It returns when a stop is requested, the session
// end time passes or ctx ends.
func (s *Streamer) pace(ctx context.Context, endAt time.Time) error {
	start := s.clock.Now()
	s.nextBurst = start
	s.lastFlush = start
	slice := min(maxSleepSlice, s.conf.EmitInterval())

	for {
		if s.stopRequested() {
			return nil
		}
		if !s.gate.Wait(ctx, s.wake) {
			return nil
		}

		now := s.clock.Now()
		if !endAt.IsZero() && !now.Before(endAt) {
			s.requestStop("duration elapsed")
			return nil
		}
		s.iterate(ctx, now)

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-s.clock.After(slice):
		}
	}
}

// iterate runs one pacing step. A panic ends the step, not the session.
func (s *Streamer) iterate(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Streaming iteration panicked", fmt.Errorf("panic: %v", r), nil)
		}
	}()

	if !now.Before(s.nextBurst) {
		s.nextBurst = now.Add(s.conf.EmitInterval())
		burst, err := s.gen.GenerateBurst(now)
		if err != nil {
			s.logger.Error("Content generation failed", err, nil)
		} else {
			s.enqueue(ctx, burst, now)
		}
	}

	if s.buf.Len() > 0 && now.Sub(s.lastFlush) >= s.conf.BatchTimeout() {
		s.flushAll(ctx, reasonBatchTimeout)
	}
}

// enqueue stamps a burst with a fresh correlation id and the session id and
// buffers it. A full buffer is flushed before the burst goes in; a buffer
// holding a full batch is flushed after.
func (s *Streamer) enqueue(ctx context.Context, burst []events.Envelope, now time.Time) {
	if len(burst) == 0 {
		return
	}
	correlationID := ids.NewCorrelationID()
	sessionID := s.Session().ID
	stamped := make([]events.Envelope, len(burst))
	for i, env := range burst {
		stamped[i] = env.Stamp(correlationID, sessionID, now)
	}

	if s.buf.Len() >= s.conf.MaxBufferSize {
		s.flushAll(ctx, reasonBackpressure)
	}
	s.stats.RecordGenerated(stamped)
	if s.buf.append(stamped) >= s.conf.MaxBatchSize {
		s.flushAll(ctx, reasonBatchFull)
	}
}

// flushAll snapshots and clears the buffer, then sends the snapshot in
// max_batch_size chunks, oldest first.
func (s *Streamer) flushAll(ctx context.Context, reason string) {
	batch := s.buf.drain()
	s.lastFlush = s.clock.Now()
	if len(batch) == 0 {
		return
	}
	for _, chunk := range chunks(batch, s.conf.MaxBatchSize) {
		s.flushBatch(ctx, chunk, reason)
	}
}

// flushBatch delivers one batch. Every event of the batch ends up either
// sent or offered to the dead-letter queue.
func (s *Streamer) flushBatch(ctx context.Context, batch []events.Envelope, reason string) {
	sessionID := s.Session().ID
	ctx, span := s.tracer.Start(ctx, "FlushBatch", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("flush.reason", reason),
		attribute.Int("batch.size", len(batch)),
	))
	defer span.End()

	fc := FlushContext{
		SessionID: sessionID,
		Reason:    reason,
		BatchSize: len(batch),
		StartedAt: s.clock.Now(),
	}
	s.hooks.start(fc)

	attempts, err := s.send(ctx, batch)
	fc.Attempts = attempts
	fc.Duration = s.clock.Now().Sub(fc.StartedAt)
	span.SetAttributes(attribute.Int("flush.attempts", attempts))

	if err == nil {
		s.stats.RecordSent(len(batch), batchBytes(batch), fc.Duration, s.clock.Now())
		s.hooks.done(fc)
		return
	}

	failure := classify.Classify(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, failure.Message)

	s.stats.RecordFailed(len(batch), failure.Category, fc.Duration)
	if s.conf.EnableDeadLetterQueue {
		for _, env := range batch {
			s.dlq.Offer(env, failure)
		}
	}
	s.hooks.failed(fc, failure)

	if failure.Severity == classify.SeverityCritical {
		s.logger.Error("Critical delivery failure, stopping session", failure, logging.LogFields{"session_id": sessionID})
		s.requestStop("critical failure: " + failure.Message)
	}
}

// send calls the transport, retrying retryable failures with exponential
// backoff. Breaker rejections are never retried. It returns the number of
// transport calls made. When the breaker opens mid-retry the transport's
// own last error is reported, not the rejection.
func (s *Streamer) send(ctx context.Context, batch []events.Envelope) (int, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialBackoff
	exp.Multiplier = s.conf.BackoffMultiplier
	exp.RandomizationFactor = 0

	attempts := 0
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.client.Send(ctx, batch)
		if lastErr == nil || !errors.Is(err, breaker.ErrCircuitOpen) {
			lastErr = err
		}
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, breaker.ErrCircuitOpen), !classify.Classify(err).Retryable:
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(uint(s.conf.RetryAttempts+1)))

	if err == nil {
		return attempts, nil
	}
	// Retry reports the context error when ctx ends during a backoff wait;
	// the transport's error says more.
	if lastErr != nil {
		return attempts, lastErr
	}
	return attempts, err
}

// RetryDLQEvents resends every parked event whose retry count is below
// maxRetries. Zero selects dlq_retry_max_attempts. Delivered events count as
// sent.
func (s *Streamer) RetryDLQEvents(ctx context.Context, maxRetries int) dlq.RetryResult {
	if maxRetries <= 0 {
		maxRetries = s.conf.DLQRetryMaxAttempts
	}
	result := s.dlq.RetryAll(ctx, maxRetries, func(ctx context.Context, batch []events.Envelope) error {
		if err := s.client.Send(ctx, batch); err != nil {
			return err
		}
		s.stats.RecordRetriedFromDLQ(len(batch), batchBytes(batch), s.clock.Now())
		return nil
	})
	s.logger.Info("Dead letter retry finished", logging.LogFields{
		"total_attempted": result.TotalAttempted,
		"succeeded":       result.Succeeded,
		"failed":          result.Failed,
		"still_in_dlq":    result.StillInDLQ,
	})
	return result
}

func batchBytes(batch []events.Envelope) int {
	total := 0
	for _, env := range batch {
		total += codec.EstimateSize(env)
	}
	return total
}
