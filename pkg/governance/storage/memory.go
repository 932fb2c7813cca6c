package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend keeps flight-recorder entries in bounded in-process
// slices. This is the default backend: fast, no persistence, records lost
// on exit.
type MemoryBackend struct {
	mu          sync.RWMutex
	windows     []*WindowRecord
	transitions []*TransitionRecord
	maxEntries  int
	closed      bool
}

// DefaultMaxEntries bounds each record kind in the memory backend.
const DefaultMaxEntries = 4096

// NewMemoryBackend creates a memory backend retaining up to maxEntries
// records of each kind. Zero or negative maxEntries uses
// DefaultMaxEntries.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryBackend{maxEntries: maxEntries}
}

// SaveWindow appends a rotated window record, evicting the oldest once the
// retention bound is reached.
func (m *MemoryBackend) SaveWindow(ctx context.Context, rec *WindowRecord) error {
	if rec == nil {
		return fmt.Errorf("window record cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("backend is closed")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	m.windows = append(m.windows, rec)
	if len(m.windows) > m.maxEntries {
		m.windows = m.windows[len(m.windows)-m.maxEntries:]
	}
	return nil
}

// SaveTransition appends a breaker transition record.
func (m *MemoryBackend) SaveTransition(ctx context.Context, rec *TransitionRecord) error {
	if rec == nil {
		return fmt.Errorf("transition record cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("backend is closed")
	}
	m.transitions = append(m.transitions, rec)
	if len(m.transitions) > m.maxEntries {
		m.transitions = m.transitions[len(m.transitions)-m.maxEntries:]
	}
	return nil
}

// RecentWindows returns up to limit window records, newest first.
func (m *MemoryBackend) RecentWindows(ctx context.Context, limit int) ([]*WindowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return recentWindowsLocked(m.windows, limit), nil
}

// RecentTransitions returns up to limit transition records, newest first.
func (m *MemoryBackend) RecentTransitions(ctx context.Context, limit int) ([]*TransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.transitions)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*TransitionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.transitions[i])
	}
	return out, nil
}

// Cleanup removes records older than the cutoff.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0

	kept := m.windows[:0]
	for _, w := range m.windows {
		if w.EndAt.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, w)
	}
	m.windows = kept

	keptTr := m.transitions[:0]
	for _, tr := range m.transitions {
		if tr.At.Before(olderThan) {
			deleted++
			continue
		}
		keptTr = append(keptTr, tr)
	}
	m.transitions = keptTr

	return deleted, nil
}

// Close marks the backend closed. Subsequent saves fail.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func recentWindowsLocked(windows []*WindowRecord, limit int) []*WindowRecord {
	n := len(windows)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*WindowRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, windows[i])
	}
	return out
}
