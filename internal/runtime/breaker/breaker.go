// Package breaker guards transport calls with a three-state circuit breaker.
// The state machine itself is sony/gobreaker configured for consecutive
// failure tripping and a single half-open trial; this package adds the
// bookkeeping the streaming engine reports (failure count, trips, opened_at)
// and a pass-through mode for deployments that disable the breaker.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a call was rejected without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally reported breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	DefaultFailureThreshold uint32 = 5
	DefaultResetTimeout            = 60 * time.Second
)

// Settings configures a CircuitBreaker. Zero values fall back to defaults.
type Settings struct {
	Name             string
	Enabled          bool
	FailureThreshold uint32
	ResetTimeout     time.Duration
	// Now stamps opened_at. Defaults to time.Now.
	Now func() time.Time

	// OnTrip runs on every CLOSED -> OPEN transition.
	OnTrip func()
	// OnStateChange observes every transition.
	OnStateChange func(from, to State)
}

func (s Settings) withDefaults() Settings {
	if s.Name == "" {
		s.Name = "transport"
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = DefaultResetTimeout
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Snapshot is a consistent read of the breaker bookkeeping.
type Snapshot struct {
	Enabled          bool          `json:"enabled"`
	State            State         `json:"state"`
	FailureCount     uint32        `json:"failure_count"`
	FailureThreshold uint32        `json:"failure_threshold"`
	OpenedAt         time.Time     `json:"opened_at,omitempty"`
	ResetTimeout     time.Duration `json:"reset_timeout"`
	Trips            uint64        `json:"trips"`
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	settings Settings
	cb       *gobreaker.CircuitBreaker

	mu       sync.Mutex
	failures uint32
	openedAt time.Time
	trips    uint64
}

// New builds a breaker in the CLOSED state.
func New(settings Settings) *CircuitBreaker {
	settings = settings.withDefaults()
	b := &CircuitBreaker{settings: settings}

	threshold := settings.FailureThreshold
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.handleStateChange(convertState(from), convertState(to))
		},
	})
	return b
}

// Execute runs fn through the breaker. When the breaker is OPEN, or the
// single HALF_OPEN trial is already in flight, fn is not invoked and the
// returned error wraps ErrCircuitOpen.
func (b *CircuitBreaker) Execute(fn func() error) error {
	if !b.settings.Enabled {
		err := fn()
		b.recordOutcome(err)
		return err
	}

	_, err := b.cb.Execute(func() (any, error) {
		err := fn()
		b.recordOutcome(err)
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s (%v)", ErrCircuitOpen, b.settings.Name, err)
	}
	return err
}

// State reports the current state. An OPEN breaker whose reset timeout has
// elapsed reports HALF_OPEN.
func (b *CircuitBreaker) State() State {
	if !b.settings.Enabled {
		return StateClosed
	}
	return convertState(b.cb.State())
}

// Snapshot returns the current state and counters.
func (b *CircuitBreaker) Snapshot() Snapshot {
	// Read the state first: gobreaker may fire OnStateChange from State(),
	// which takes b.mu.
	state := b.State()

	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Enabled:          b.settings.Enabled,
		State:            state,
		FailureCount:     b.failures,
		FailureThreshold: b.settings.FailureThreshold,
		OpenedAt:         b.openedAt,
		ResetTimeout:     b.settings.ResetTimeout,
		Trips:            b.trips,
	}
}

// Trips returns how many times the breaker went from CLOSED to OPEN.
func (b *CircuitBreaker) Trips() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

func (b *CircuitBreaker) recordOutcome(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
}

func (b *CircuitBreaker) handleStateChange(from, to State) {
	tripped := false

	b.mu.Lock()
	switch to {
	case StateOpen:
		b.openedAt = b.settings.Now()
		if from == StateClosed {
			b.trips++
			tripped = true
		}
	case StateClosed:
		b.failures = 0
	}
	b.mu.Unlock()

	if tripped && b.settings.OnTrip != nil {
		b.settings.OnTrip()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
