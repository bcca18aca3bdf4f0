// Package ids mints the identifiers stamped onto streamed events.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	return CreateULIDAt(time.Now())
}

// CreateULIDAt returns a ULID whose timestamp component is taken from at.
// IDs minted for the same millisecond stay strictly increasing.
func CreateULIDAt(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(at), entropy)
	return id.String()
}

// NewTraceID identifies a single logical business event.
func NewTraceID() string { return CreateULID() }

// NewCorrelationID identifies one generation burst.
func NewCorrelationID() string { return CreateULID() }

// NewSessionID identifies one streaming session. Sessions are not ordered
// relative to each other, so a random UUID is enough.
func NewSessionID() string {
	return uuid.NewString()
}
