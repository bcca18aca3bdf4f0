package streamer

import (
	"time"

	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/logging"
)

// FlushContext describes one batch handed to the transport.
type FlushContext struct {
	SessionID string
	// Reason is what triggered the flush: batch_full, batch_timeout,
	// backpressure or shutdown.
	Reason    string
	BatchSize int
	StartedAt time.Time
	// Duration is only set in OnFlushDone and OnFlushError.
	Duration time.Duration
	// Attempts counts transport calls including in-flush retries.
	Attempts int
}

// FlushHooks observe the flush lifecycle. Nil hooks are skipped. Hooks run on
// the pacing goroutine and must return quickly.
type FlushHooks struct {
	OnFlushStart func(ctx FlushContext)
	OnFlushDone  func(ctx FlushContext)
	OnFlushError func(ctx FlushContext, failure *classify.StreamingError)
}

// Merge returns hooks that call h first, then other.
func (h FlushHooks) Merge(other FlushHooks) FlushHooks {
	return FlushHooks{
		OnFlushStart: chainFlushHooks(h.OnFlushStart, other.OnFlushStart),
		OnFlushDone:  chainFlushHooks(h.OnFlushDone, other.OnFlushDone),
		OnFlushError: chainErrorHooks(h.OnFlushError, other.OnFlushError),
	}
}

func chainFlushHooks(a, b func(FlushContext)) func(FlushContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx FlushContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(FlushContext, *classify.StreamingError)) func(FlushContext, *classify.StreamingError) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx FlushContext, failure *classify.StreamingError) {
		a(ctx, failure)
		b(ctx, failure)
	}
}

func (h FlushHooks) start(ctx FlushContext) {
	if h.OnFlushStart != nil {
		h.OnFlushStart(ctx)
	}
}

func (h FlushHooks) done(ctx FlushContext) {
	if h.OnFlushDone != nil {
		h.OnFlushDone(ctx)
	}
}

func (h FlushHooks) failed(ctx FlushContext, failure *classify.StreamingError) {
	if h.OnFlushError != nil {
		h.OnFlushError(ctx, failure)
	}
}

// LoggingHooks log every flush at debug level and failures as warnings.
func LoggingHooks(logger logging.ServiceLogger) FlushHooks {
	return FlushHooks{
		OnFlushStart: func(ctx FlushContext) {
			logger.Debug("Flush started", logging.LogFields{
				"session_id": ctx.SessionID,
				"reason":     ctx.Reason,
				"batch_size": ctx.BatchSize,
			})
		},
		OnFlushDone: func(ctx FlushContext) {
			logger.Debug("Flush completed", logging.LogFields{
				"session_id":  ctx.SessionID,
				"batch_size":  ctx.BatchSize,
				"attempts":    ctx.Attempts,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnFlushError: func(ctx FlushContext, failure *classify.StreamingError) {
			logger.Warn("Flush failed", logging.LogFields{
				"session_id":  ctx.SessionID,
				"batch_size":  ctx.BatchSize,
				"attempts":    ctx.Attempts,
				"duration_ms": ctx.Duration.Milliseconds(),
				"category":    failure.Category,
				"severity":    failure.Severity,
				"error":       failure.Message,
			})
		},
	}
}

// AlertingHooks call alert for every failed flush.
func AlertingHooks(alert func(ctx FlushContext, failure *classify.StreamingError)) FlushHooks {
	return FlushHooks{OnFlushError: alert}
}
