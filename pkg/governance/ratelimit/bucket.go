package ratelimit

import (
	"sync"
	"time"
)

// tokenBucket holds the mutable per-key state. Capacity and refill rate are
// uniform across the limiter and live in the Config; the bucket carries only
// what changes per request.
//
// Invariant: 0 <= tokens <= capacity at all times. Refill never decreases
// tokens; only consume does, floored at zero.
type tokenBucket struct {
	mu          sync.Mutex
	tokens      float64
	lastRefill  time.Time
	lastTouched time.Time
}

// newTokenBucket creates a bucket starting at full capacity, so the first
// request for a new key is always admitted.
func newTokenBucket(capacity float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:      capacity,
		lastRefill:  now,
		lastTouched: now,
	}
}

// refillLocked adds tokens for the time elapsed since the last refill,
// capped at capacity. Caller must hold the bucket mutex.
func (b *tokenBucket) refillLocked(capacity, rate float64, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * rate
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now
}

// consumeLocked subtracts cost from the bucket, floored at zero.
// Caller must hold the bucket mutex.
func (b *tokenBucket) consumeLocked(cost float64) {
	b.tokens -= cost
	if b.tokens < 0 {
		b.tokens = 0
	}
}
