// Package perfmon provides low-overhead request performance monitoring
// with approximate latency percentiles.
//
// # Overview
//
// The monitor aggregates request outcomes into fixed-duration windows that
// rotate forward over time. The current window is mutable; rotated windows
// are immutable and retained up to a configured depth. Latency percentiles
// are estimated from a fixed-capacity ring buffer of recent samples:
// bounded memory under sustained load, at the cost of quantile precision.
// That trade-off suits dashboards and alerting, not SLA-grade billing.
//
// # Usage
//
//	mon, err := perfmon.NewMonitor(perfmon.Config{
//	    Window:      time.Minute,
//	    KeepWindows: 5,
//	}, clock.System())
//
//	mon.OnRequestStart()
//	// ... handler runs ...
//	mon.OnRequestEnd(elapsed, status, r.Method, r.URL.Path)
//
// # Thread Safety
//
// A single mutex per monitor guards window rotation and ring-buffer
// writes. It is held only for brief in-memory updates; nothing in this
// package performs I/O.
package perfmon
