// Package circuit provides a circuit breaker protecting a downstream
// resource from overload.
//
// # States
//
// A breaker starts Closed (all requests pass). Once recent failure history
// crosses a threshold it opens (all requests rejected immediately). After
// the reset timeout it half-opens: a bounded number of trial requests probe
// the resource, and a single trial outcome decides between fully closing
// and re-opening.
//
// # Evaluation
//
// Transition conditions are evaluated synchronously after every recorded
// outcome and again on a background timer tick. The timer matters for the
// Open state: with zero incoming traffic, request-triggered evaluation
// alone would never probe recovery.
//
// # Usage
//
//	breaker, err := circuit.NewBreaker(circuit.Config{
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	}, clock.System())
//	defer breaker.Stop()
//
//	if !breaker.AllowRequest() {
//	    // reject with 503
//	}
//	// ... call the resource ...
//	breaker.RecordRequest(err == nil, elapsed)
//
// # Thread Safety
//
// All state transitions and counter updates are serialized by a single
// mutex per breaker. The background tick acquires the same mutex, so it
// never races a RecordRequest on the same breaker.
package circuit
