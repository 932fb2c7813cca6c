package circuit

import (
	"fmt"
	"sync"
	"time"

	"relay-hq/sentinel/pkg/governance/clock"
)

// Transition describes a single state change, delivered to the optional
// state-change hook.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Breaker is a circuit breaker for one protected resource.
//
// Breakers are typically low-cardinality (one per resource), so a single
// mutex serializes all state access. Timeouts are comparisons against
// stored timestamps; nothing in the breaker ever blocks.
type Breaker struct {
	cfg Config
	clk clock.Clock

	mu                  sync.Mutex
	state               State
	totalRequests       uint64
	successCount        uint64
	failureCount        uint64
	consecutiveFailures uint64
	avgResponseMs       float64
	halfOpenInFlight    uint32
	lastStateChange     time.Time
	lastFailure         time.Time
	pending             []Transition

	onStateChange func(Transition)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewBreaker creates a breaker in the Closed state and starts its
// background re-evaluation ticker. Call Stop when the protected resource is
// decommissioned so the breaker can be collected.
func NewBreaker(cfg Config, clk clock.Clock) (*Breaker, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	if clk == nil {
		clk = clock.System()
	}
	b := &Breaker{
		cfg:             cfg,
		clk:             clk,
		state:           StateClosed,
		lastStateChange: clk.Now(),
		stopCh:          make(chan struct{}),
	}
	b.wg.Add(1)
	go b.monitor()
	return b, nil
}

// OnStateChange registers a hook invoked after every state transition. The
// hook runs outside the breaker lock; it may call back into the breaker.
func (b *Breaker) OnStateChange(fn func(Transition)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// AllowRequest reports whether a request may proceed.
//
// Closed always admits. Open rejects, except that once the reset timeout
// has elapsed the call itself performs the Open→HalfOpen transition and is
// admitted as a trial. HalfOpen admits while fewer than
// HalfOpenMaxRequests trials are in flight.
func (b *Breaker) AllowRequest() bool {
	b.mu.Lock()
	now := b.clk.Now()

	var allowed bool
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if !b.cfg.DisableAutoRecovery && now.Sub(b.lastStateChange) >= b.cfg.ResetTimeout {
			b.transitionLocked(StateHalfOpen, now)
			b.halfOpenInFlight++
			allowed = true
		}
	case StateHalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenMaxRequests {
			b.halfOpenInFlight++
			allowed = true
		}
	}

	pending := b.drainPendingLocked()
	b.mu.Unlock()

	b.notify(pending)
	return allowed
}

// RecordRequest records the outcome of a completed request and re-evaluates
// transition conditions.
//
// A success resets the consecutive-failure count and closes a HalfOpen
// breaker. A failure while HalfOpen re-opens the breaker immediately: a
// single failed probe is enough.
func (b *Breaker) RecordRequest(success bool, duration time.Duration) {
	b.mu.Lock()
	now := b.clk.Now()

	b.totalRequests++
	// Running mean, no sample storage.
	ms := float64(duration) / float64(time.Millisecond)
	b.avgResponseMs += (ms - b.avgResponseMs) / float64(b.totalRequests)

	wasHalfOpen := b.state == StateHalfOpen
	if wasHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if success {
		b.successCount++
		b.consecutiveFailures = 0
		if wasHalfOpen {
			b.transitionLocked(StateClosed, now)
		}
	} else {
		b.failureCount++
		b.consecutiveFailures++
		b.lastFailure = now
		if wasHalfOpen {
			b.transitionLocked(StateOpen, now)
		}
	}

	b.evaluateLocked(now)

	pending := b.drainPendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// Evaluate re-checks transition conditions against the current time. It is
// called from the background ticker and may also be driven by an external
// scheduler.
func (b *Breaker) Evaluate() {
	b.mu.Lock()
	b.evaluateLocked(b.clk.Now())
	pending := b.drainPendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// Open forces the breaker open. Operator override; always succeeds.
func (b *Breaker) Open() {
	b.force(StateOpen)
}

// Close forces the breaker closed. Operator override; always succeeds.
func (b *Breaker) Close() {
	b.force(StateClosed)
}

// Reset clears all counters and returns the breaker to Closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	now := b.clk.Now()
	b.totalRequests = 0
	b.successCount = 0
	b.failureCount = 0
	b.consecutiveFailures = 0
	b.avgResponseMs = 0
	b.halfOpenInFlight = 0
	b.lastFailure = time.Time{}
	if b.state != StateClosed {
		b.transitionLocked(StateClosed, now)
	}
	pending := b.drainPendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// Stats returns a snapshot of the breaker's state and counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var rate float64
	if b.totalRequests > 0 {
		rate = float64(b.failureCount) / float64(b.totalRequests)
	}
	return Stats{
		State:                 b.state,
		TotalRequests:         b.totalRequests,
		SuccessCount:          b.successCount,
		FailureCount:          b.failureCount,
		ConsecutiveFailures:   b.consecutiveFailures,
		FailureRate:           rate,
		AverageResponseTimeMs: b.avgResponseMs,
		LastStateChangeAt:     b.lastStateChange,
		LastFailureAt:         b.lastFailure,
		HalfOpenInFlight:      b.halfOpenInFlight,
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Config returns the breaker's effective configuration (defaults applied).
func (b *Breaker) Config() Config {
	return b.cfg
}

// Stop cancels the background re-evaluation ticker and waits for it to
// exit. The breaker itself remains usable after Stop.
func (b *Breaker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}

// monitor is the background re-evaluation loop. It exists so an Open
// breaker with zero incoming traffic still probes recovery.
func (b *Breaker) monitor() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.MonitoringPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.Evaluate()
		}
	}
}

// evaluateLocked applies the documented transition rules. Caller must hold
// the mutex.
func (b *Breaker) evaluateLocked(now time.Time) {
	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen, now)
			return
		}
		if b.totalRequests >= b.cfg.VolumeThreshold {
			rate := float64(b.failureCount) / float64(b.totalRequests)
			if rate >= b.cfg.FailureRateThreshold {
				b.transitionLocked(StateOpen, now)
			}
		}
	case StateOpen:
		if !b.cfg.DisableAutoRecovery && now.Sub(b.lastStateChange) >= b.cfg.ResetTimeout {
			b.transitionLocked(StateHalfOpen, now)
		}
	}
}

// transitionLocked moves to the given state. Caller must hold the mutex.
//
// Entering Closed starts a fresh evaluation window: the rolling counters
// are cleared so a pre-transition failure rate cannot immediately re-open
// a breaker that a successful probe (or an operator) just closed.
func (b *Breaker) transitionLocked(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.lastStateChange = now
	switch to {
	case StateHalfOpen:
		b.halfOpenInFlight = 0
	case StateClosed:
		b.totalRequests = 0
		b.successCount = 0
		b.failureCount = 0
		b.consecutiveFailures = 0
	}
	b.pending = append(b.pending, Transition{From: from, To: to, At: now})
}

// force performs an operator-driven transition.
func (b *Breaker) force(to State) {
	b.mu.Lock()
	now := b.clk.Now()
	b.transitionLocked(to, now)
	if to == StateClosed {
		b.consecutiveFailures = 0
	}
	pending := b.drainPendingLocked()
	b.mu.Unlock()

	b.notify(pending)
}

// drainPendingLocked takes the queued transitions. Caller must hold the
// mutex.
func (b *Breaker) drainPendingLocked() []Transition {
	pending := b.pending
	b.pending = nil
	return pending
}

// notify delivers transitions to the hook outside the lock.
func (b *Breaker) notify(transitions []Transition) {
	if len(transitions) == 0 {
		return
	}
	b.mu.Lock()
	fn := b.onStateChange
	b.mu.Unlock()
	if fn == nil {
		return
	}
	for _, tr := range transitions {
		fn(tr)
	}
}
