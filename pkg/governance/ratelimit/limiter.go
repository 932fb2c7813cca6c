package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"relay-hq/sentinel/pkg/governance/clock"
)

// Limiter is a per-key token bucket rate limiter.
//
// Buckets are created lazily on first use of a key and evicted by Cleanup
// once untouched for longer than twice the nominal window, bounding memory
// for high-cardinality keys such as per-IP limiting.
type Limiter struct {
	cfg Config
	clk clock.Clock

	mu      sync.RWMutex
	buckets map[string]*tokenBucket
}

// NewLimiter creates a limiter from the given configuration.
// Invalid configurations (negative thresholds, missing custom key function)
// fail here, before any request is served.
func NewLimiter(cfg Config, clk clock.Clock) (*Limiter, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Limiter{
		cfg:     cfg,
		clk:     clk,
		buckets: make(map[string]*tokenBucket),
	}, nil
}

// Check refills the bucket for the request's key and reports whether the
// request may proceed. Check does not consume tokens; call Consume once the
// request outcome is known.
//
// Check never panics out to the caller: internal failures resolve to an
// allow decision against the global key.
func (l *Limiter) Check(req Request) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rate limit check recovered, failing open", "panic", r)
			decision = Decision{
				Allowed:   true,
				Key:       globalKey,
				Remaining: l.cfg.BucketCapacity,
				ResetAt:   l.clk.Now(),
				Limit:     l.cfg.MaxRequests,
			}
		}
	}()
	return l.CheckKey(l.keyFor(req))
}

// CheckKey is Check for a pre-derived key.
func (l *Limiter) CheckKey(key string) Decision {
	now := l.clk.Now()
	b := l.bucket(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(l.cfg.BucketCapacity, l.cfg.TokenRate, now)
	b.lastTouched = now

	allowed := b.tokens >= l.cfg.TokensPerRequest

	var wait time.Duration
	if !allowed {
		// Whole seconds until enough tokens have accrued, never negative.
		deficit := l.cfg.TokensPerRequest - b.tokens
		secs := math.Ceil(deficit / l.cfg.TokenRate)
		if secs < 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
			secs = 0
		}
		wait = time.Duration(secs) * time.Second
	}

	return Decision{
		Allowed:    allowed,
		Key:        key,
		Remaining:  b.tokens,
		ResetAt:    now.Add(wait),
		Limit:      l.cfg.MaxRequests,
		RetryAfter: wait,
	}
}

// Consume spends the per-request token cost from the bucket, floored at
// zero. It is called after the request outcome is known.
func (l *Limiter) Consume(key string) {
	now := l.clk.Now()
	b := l.bucket(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(l.cfg.BucketCapacity, l.cfg.TokenRate, now)
	b.consumeLocked(l.cfg.TokensPerRequest)
	b.lastTouched = now
}

// RecordOutcome consumes tokens for a completed request unless the
// configured skip flags exempt this outcome.
func (l *Limiter) RecordOutcome(key string, success bool) {
	if key == "" {
		// No key was derived for this request (fail-open admission);
		// nothing to charge.
		return
	}
	if success && l.cfg.SkipSuccessfulRequests {
		return
	}
	if !success && l.cfg.SkipFailedRequests {
		return
	}
	l.Consume(key)
}

// Cleanup removes buckets untouched for longer than 2×Window and returns
// the number evicted.
func (l *Limiter) Cleanup() int {
	cutoff := l.clk.Now().Add(-2 * l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		stale := b.lastTouched.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Config returns the limiter's effective configuration (defaults applied).
func (l *Limiter) Config() Config {
	return l.cfg
}

// bucket returns the bucket for key, creating it at full capacity if it
// does not exist yet.
func (l *Limiter) bucket(key string, now time.Time) *tokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = newTokenBucket(l.cfg.BucketCapacity, now)
	l.buckets[key] = b
	return b
}

// keyFor derives the bucket key for a request. Derivation failures fall
// back to the global key so a malformed request is still admitted against
// the shared quota.
func (l *Limiter) keyFor(req Request) string {
	switch l.cfg.Strategy {
	case StrategyUser:
		if req.UserID == "" {
			return globalKey
		}
		return "user:" + req.UserID
	case StrategyTenant:
		if req.TenantID == "" {
			return globalKey
		}
		return "tenant:" + req.TenantID
	case StrategyEndpoint:
		if req.Method == "" || req.Path == "" {
			return globalKey
		}
		return "endpoint:" + req.Method + " " + req.Path
	case StrategyCustom:
		return l.customKey(req)
	default:
		return globalKey
	}
}

// customKey runs the user-supplied key function, containing panics so a
// buggy generator degrades to the global key instead of failing the check.
func (l *Limiter) customKey(req Request) (key string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("custom key generator panicked, using global key", "panic", r)
			key = globalKey
		}
	}()
	derived, err := l.cfg.KeyFunc(req)
	if err != nil || derived == "" {
		slog.Debug("custom key derivation failed, using global key", "error", err)
		return globalKey
	}
	return derived
}
