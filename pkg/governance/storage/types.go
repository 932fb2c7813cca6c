package storage

import (
	"context"
	"time"
)

// WindowRecord is one rotated-out performance window.
type WindowRecord struct {
	StartAt        time.Time
	EndAt          time.Time
	Total          uint64
	SuccessCount   uint64
	FailureCount   uint64
	MaxConcurrency uint32
	SumDurationMs  float64
	P50            float64
	P90            float64
	P99            float64
	RecordedAt     time.Time
}

// TransitionRecord is one circuit breaker state change.
type TransitionRecord struct {
	Breaker     string
	FromState   string
	ToState     string
	FailureRate float64
	At          time.Time
}

// Backend persists flight-recorder entries. Implementations must be safe
// for concurrent use and must never block the request path: callers invoke
// Save methods from background goroutines only.
type Backend interface {
	// SaveWindow appends a rotated window record.
	SaveWindow(ctx context.Context, rec *WindowRecord) error

	// SaveTransition appends a breaker state transition.
	SaveTransition(ctx context.Context, rec *TransitionRecord) error

	// RecentWindows returns up to limit window records, newest first.
	RecentWindows(ctx context.Context, limit int) ([]*WindowRecord, error)

	// RecentTransitions returns up to limit transition records, newest
	// first.
	RecentTransitions(ctx context.Context, limit int) ([]*TransitionRecord, error)

	// Cleanup removes records older than the cutoff and returns the number
	// deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases backend resources. The backend must not be used after
	// Close.
	Close() error
}
