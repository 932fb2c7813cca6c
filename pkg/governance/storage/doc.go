// Package storage provides the governance flight recorder: an append-only
// log of rotated performance windows and circuit breaker state transitions.
//
// The recorder is strictly write-behind observability. Governance state is
// never restored from it on restart; buckets, breakers, and windows always
// start fresh.
//
// Two backends implement the Backend interface:
//
//   - MemoryBackend: bounded in-process ring of records, the default
//   - SQLiteBackend: durable single-file store for post-incident analysis
package storage
