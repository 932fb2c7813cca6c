// Package governance coordinates the request-governance layer: per-key
// token-bucket rate limiting, a circuit breaker per protected resource, and
// the performance monitor, behind a single facade tied to the request
// lifecycle.
//
// # Control Flow
//
// For each request the HTTP adapter makes up to three calls:
//
//	decision := gov.BeforeRoute(req)   // admission: rate limit, then breaker
//	// handler runs if decision.Allowed()
//	gov.AfterSuccess(req, elapsed, status)
//	// or, when the handler failed:
//	gov.AfterFailure(req, elapsed, err)
//
// and an external scheduler drives gov.Tick() independent of traffic.
//
// # Failure Semantics
//
// Admission rejections are policy decisions, not faults; they carry the
// response to emit (429 or 503). Internal failures inside the governance
// layer never reach the caller: admission fails open and outcome-recording
// errors are logged and dropped. A bug in this layer must not take down the
// traffic it protects.
package governance
