package monitor

import (
	"context"
	"sync"
	"time"
)

// PauseStats is the pause bookkeeping at one instant.
type PauseStats struct {
	Paused                  bool          `json:"paused"`
	PauseCount              int           `json:"pause_count"`
	TotalPauseDuration      time.Duration `json:"total_pause_duration"`
	CurrentlyPausedDuration time.Duration `json:"currently_paused_duration"`
}

// Gate blocks the pacing loop while paused. The open channel is closed
// whenever the gate is open, so waiters never miss a resume.
type Gate struct {
	mu         sync.Mutex
	open       chan struct{}
	paused     bool
	pausedAt   time.Time
	pauseCount int
	total      time.Duration
	now        func() time.Time
}

// NewGate returns an open gate.
func NewGate(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	open := make(chan struct{})
	close(open)
	return &Gate{open: open, now: now}
}

// Pause closes the gate. It reports false when already paused.
func (g *Gate) Pause() (bool, PauseStats) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return false, g.statsLocked()
	}
	g.paused = true
	g.pausedAt = g.now()
	g.pauseCount++
	g.open = make(chan struct{})
	return true, g.statsLocked()
}

// Resume opens the gate. It reports false when not paused. The returned
// duration is how long this pause lasted.
func (g *Gate) Resume() (bool, time.Duration, PauseStats) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		return false, 0, g.statsLocked()
	}
	pausedFor := g.now().Sub(g.pausedAt)
	g.total += pausedFor
	g.paused = false
	g.pausedAt = time.Time{}
	close(g.open)
	return true, pausedFor, g.statsLocked()
}

// Wait returns immediately when the gate is open, otherwise blocks until it
// opens, ctx ends or wake fires. It reports whether the gate is open.
func (g *Gate) Wait(ctx context.Context, wake <-chan struct{}) bool {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()

	select {
	case <-open:
		return true
	case <-ctx.Done():
		return false
	case <-wake:
		return false
	}
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Stats returns the current bookkeeping.
func (g *Gate) Stats() PauseStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statsLocked()
}

func (g *Gate) statsLocked() PauseStats {
	s := PauseStats{
		Paused:             g.paused,
		PauseCount:         g.pauseCount,
		TotalPauseDuration: g.total,
	}
	if g.paused {
		s.CurrentlyPausedDuration = g.now().Sub(g.pausedAt)
	}
	return s
}
