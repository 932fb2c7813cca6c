// Package middleware provides the HTTP middleware chain for governed
// services.
//
// # Middleware Chain
//
// Middleware is applied in order (first listed = outermost):
//
//	handler = middleware.RequestID(handler)
//	handler = middleware.Recovery(handler)
//	handler = middleware.Logging(handler)
//	handler = middleware.Governance(gov, nil)(handler)
//
// # Governance Middleware
//
// The governance middleware is the request-lifecycle adapter for the
// governance layer. It calls the governor at three points per request:
// admission before routing (short-circuiting with 429 or 503), outcome
// recording after the handler returns, and outcome recording as failure
// when the handler panics. Rate-limit headers are set on every response,
// admitted or not.
package middleware
