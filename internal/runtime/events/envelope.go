package events

import (
	"errors"
	"fmt"
	"time"

	idspkg "github.com/drblury/retailstream/internal/runtime/ids"
)

// Envelope carries one business event. Envelopes are values: the helpers
// below return modified copies and never mutate the receiver.
type Envelope struct {
	EventType       EventType `json:"event_type"`
	Payload         Payload   `json:"payload"`
	TraceID         string    `json:"trace_id"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	ParentEventID   string    `json:"parent_event_id,omitempty"`
	IngestTimestamp time.Time `json:"ingest_timestamp"`
}

var (
	ErrPayloadRequired  = errors.New("events: payload is required")
	ErrTraceIDRequired  = errors.New("events: trace id is required")
	ErrUnknownEventType = errors.New("events: unknown event type")
)

// New wraps payload in an envelope with a fresh trace id. The event type is
// taken from the payload so the two can never disagree.
func New(payload Payload, at time.Time) Envelope {
	env := Envelope{
		Payload:         payload,
		TraceID:         idspkg.CreateULIDAt(at),
		IngestTimestamp: at.UTC(),
	}
	if payload != nil {
		env.EventType = payload.EventType()
	}
	return env
}

// WithParent returns a copy linked to the causing event.
func (e Envelope) WithParent(parentTraceID string) Envelope {
	e.ParentEventID = parentTraceID
	return e
}

// Stamp fills the identifiers the orchestrator owns. Values already present
// on the envelope are kept.
func (e Envelope) Stamp(correlationID, sessionID string, now time.Time) Envelope {
	if e.CorrelationID == "" {
		e.CorrelationID = correlationID
	}
	if e.SessionID == "" {
		e.SessionID = sessionID
	}
	if e.TraceID == "" {
		e.TraceID = idspkg.CreateULIDAt(now)
	}
	if e.IngestTimestamp.IsZero() {
		e.IngestTimestamp = now.UTC()
	}
	if e.EventType == "" && e.Payload != nil {
		e.EventType = e.Payload.EventType()
	}
	return e
}

// Validate checks that the envelope is well formed.
func (e Envelope) Validate() error {
	if e.Payload == nil {
		return ErrPayloadRequired
	}
	if !e.EventType.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
	if got := e.Payload.EventType(); got != e.EventType {
		return fmt.Errorf("events: payload %s does not match envelope type %s", got, e.EventType)
	}
	if e.TraceID == "" {
		return ErrTraceIDRequired
	}
	return nil
}
