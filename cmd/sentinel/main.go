// Sentinel is a request governance layer for HTTP services.
//
// It wraps an upstream handler with three cooperating safeguards:
//   - Token bucket rate limiting with per-user, per-tenant, and
//     per-endpoint key strategies
//   - A circuit breaker that sheds load when the backend degrades
//   - A sliding-window performance monitor with latency percentiles
//
// Usage:
//
//	# Start server with default configuration
//	sentinel run
//
//	# Start with custom configuration file
//	sentinel run --config /path/to/config.yaml
//
//	# Show version information
//	sentinel version
//
//	# Validate a configuration file
//	sentinel validate --config config.yaml
package main

func main() {
	Execute()
}
