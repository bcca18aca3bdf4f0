// Package metadata builds the header map that travels beside every
// published message.
package metadata

import (
	"time"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// Header keys set on every published envelope.
const (
	KeyEventType       = "event_type"
	KeyTraceID         = "trace_id"
	KeyCorrelationID   = "correlation_id"
	KeySessionID       = "session_id"
	KeyParentEventID   = "parent_event_id"
	KeyIngestTimestamp = "ingest_timestamp"
	KeyContentType     = "content_type"
)

// Metadata is a string header map. Helpers return copies.
type Metadata map[string]string

// FromEnvelope returns the headers describing env. Empty identifiers are
// omitted.
func FromEnvelope(env events.Envelope) Metadata {
	md := Metadata{
		KeyEventType: string(env.EventType),
		KeyTraceID:   env.TraceID,
	}
	if !env.IngestTimestamp.IsZero() {
		md[KeyIngestTimestamp] = env.IngestTimestamp.UTC().Format(time.RFC3339Nano)
	}
	for key, value := range map[string]string{
		KeyCorrelationID: env.CorrelationID,
		KeySessionID:     env.SessionID,
		KeyParentEventID: env.ParentEventID,
	} {
		if value != "" {
			md[key] = value
		}
	}
	return md
}

// Clone returns a shallow copy. The copy of a nil map is empty, not nil.
func (m Metadata) Clone() Metadata {
	return m.merge(nil)
}

// With returns a copy with key set to value.
func (m Metadata) With(key, value string) Metadata {
	return m.merge(Metadata{key: value})
}

// WithAll returns a copy overlaid with extra. Keys in extra win.
func (m Metadata) WithAll(extra Metadata) Metadata {
	return m.merge(extra)
}

func (m Metadata) merge(extra Metadata) Metadata {
	out := make(Metadata, len(m)+len(extra))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
