// Package telemetry groups the observability support packages.
//
// # Components
//
//   - logging: structured logging built on log/slog with context-aware
//     request ID, user, and tenant enrichment
//
// Prometheus metrics for the governance components live alongside the
// components themselves in pkg/governance; the metrics endpoint is wired
// by pkg/server.
package telemetry
