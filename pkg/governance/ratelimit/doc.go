// Package ratelimit provides per-key admission control using the token
// bucket algorithm with continuous replenishment.
//
// # Overview
//
// Each rate-limit key (derived from the request by the configured strategy)
// owns a bucket that refills at a constant rate up to a fixed capacity.
// Admission is split into two phases so that the skip-successful and
// skip-failed flags can be honored:
//
//   - Check: refills the bucket and tests availability without consuming
//   - Consume: spends tokens once the request outcome is known
//
// # Usage
//
//	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
//	    BucketCapacity:  100,
//	    TokenRate:       10, // tokens/sec
//	    Strategy:        ratelimit.StrategyUser,
//	}, clock.System())
//
//	decision := limiter.Check(req)
//	if !decision.Allowed {
//	    // reject with 429
//	}
//	// ... handler runs ...
//	limiter.Consume(decision.Key)
//
// # Key Derivation
//
// Key derivation is a pure function of request attributes. If the selected
// strategy cannot produce a key (missing header, panicking custom
// generator), the limiter falls back to the global key rather than
// rejecting: availability wins over strict quota accuracy.
//
// # Thread Safety
//
// The limiter is safe for concurrent use. The key registry is guarded by a
// read-write mutex and each bucket by its own mutex, so requests for
// different keys do not contend on refill arithmetic.
package ratelimit
