// Package clock provides the time source used by the governance components.
//
// All timing decisions in the governance layer (token refill, breaker reset
// timeouts, window rotation) are comparisons against timestamps obtained from
// a Clock, never scheduled sleeps. Injecting the clock keeps every
// timing-sensitive code path testable with simulated time.
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source.
type Clock interface {
	// Now returns the current time. Implementations must be safe for
	// concurrent use.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
}

// System returns a Clock backed by the system monotonic clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Manual is a Clock whose time only moves when Advance or Set is called.
// It is intended for tests that need deterministic refill and timeout
// arithmetic.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current simulated time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Since returns the simulated time elapsed since t.
func (m *Manual) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Advance moves the simulated time forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set jumps the simulated time to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
