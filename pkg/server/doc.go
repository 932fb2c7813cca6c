// Package server provides the governed HTTP server for Sentinel.
//
// This package ties together the governance components (rate limiter,
// circuit breaker, performance monitor), the middleware chain, and the
// operator surface, and provides server lifecycle management including
// start, shutdown, and background maintenance.
//
// # Architecture
//
// The server package is the top-level orchestrator that:
//   - Wraps the application handler in the governance middleware chain
//   - Exposes health, metrics, and admin endpoints outside the chain
//   - Runs background maintenance (bucket eviction, storage retention)
//   - Manages graceful shutdown
//   - Handles OS signals (SIGTERM, SIGINT)
//
// # Basic Usage
//
// Creating and starting a server:
//
//	import (
//	    "context"
//	    "relay-hq/sentinel/pkg/config"
//	    "relay-hq/sentinel/pkg/governance"
//	    "relay-hq/sentinel/pkg/server"
//	)
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	gov, err := governance.NewGovernor(governance.Config{...})
//	defer gov.Close()
//
//	srv := server.NewServer(cfg, gov, appHandler, server.Options{})
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server handles graceful shutdown automatically when receiving SIGTERM
// or SIGINT, or programmatically via Shutdown. The shutdown process:
//  1. Stops accepting new connections
//  2. Waits for active connections to complete (up to shutdown timeout)
//  3. Forces connection closure if timeout exceeded
//
// # Routes
//
// The server exposes the following HTTP endpoints:
//
//   - GET  /healthz                      - Liveness plus governance summary
//   - GET  /admin/governance/snapshot    - Full governance snapshot
//   - GET  /admin/governance/windows     - Retained performance windows
//   - GET  /admin/governance/history     - Persisted windows and transitions
//   - POST /admin/circuit/open           - Force the breaker open
//   - POST /admin/circuit/close          - Force the breaker closed
//   - POST /admin/circuit/reset          - Close the breaker and clear counters
//   - GET  /metrics                      - Prometheus metrics (configurable path)
//
// All other paths are served by the governed application handler.
//
// # Middleware Chain
//
// Governed requests pass through the following middleware (outermost to
// innermost):
//  1. Recovery: Recovers from panics and returns 500 error
//  2. RequestID: Generates unique request ID for tracing
//  3. Logging: Logs request/response details
//  4. Governance: Admission check, outcome recording, rate limit headers
//
// The admin and metrics endpoints sit inside Recovery/RequestID/Logging but
// outside Governance, so operators can reach them while the circuit is open.
//
// # Thread Safety
//
// All server operations are thread-safe and can be called concurrently from
// multiple goroutines.
package server
