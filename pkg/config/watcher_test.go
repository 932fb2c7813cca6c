package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeWatchedFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

// ============================================================================
// File Watcher Tests
// ============================================================================

func TestFileWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedFile(t, path, "server:\n  listen_address: \":8080\"\n")

	fw, err := NewFileWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeWatchedFile(t, path, "server:\n  listen_address: \":9090\"\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && reloads.Load() == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("reload callback never fired after a file change")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedFile(t, path, "server: {}\n")

	fw, err := NewFileWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = fw.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	writeWatchedFile(t, filepath.Join(dir, "unrelated.txt"), "noise")
	writeWatchedFile(t, filepath.Join(dir, "other.yaml"), "noise: true\n")

	time.Sleep(400 * time.Millisecond)
	if got := reloads.Load(); got != 0 {
		t.Errorf("reloads = %d, changes to other files must be ignored", got)
	}
	_ = fw.Stop()
}

func TestFileWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedFile(t, path, "a: 1\n")

	fw, err := NewFileWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = fw.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)
	// A burst of writes inside one debounce interval.
	for i := 0; i < 5; i++ {
		writeWatchedFile(t, path, "a: 1\n")
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && reloads.Load() == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	// Let any stragglers fire before counting.
	time.Sleep(300 * time.Millisecond)

	if got := reloads.Load(); got == 0 || got >= 5 {
		t.Errorf("reloads = %d, want a debounced count (at least 1, fewer than the 5 writes)", got)
	}
	_ = fw.Stop()
}

func TestFileWatcher_DoubleStartRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedFile(t, path, "a: 1\n")

	fw, err := NewFileWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fw.Watch(ctx, func() error { return nil }) }()
	time.Sleep(50 * time.Millisecond)

	if err := fw.Watch(ctx, func() error { return nil }); err == nil {
		t.Error("second Watch() should fail while the first is running")
	}
	_ = fw.Stop()
}

func TestFileWatcher_StopBeforeWatch(t *testing.T) {
	fw, err := NewFileWatcher(filepath.Join(t.TempDir(), "config.yaml"), nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("Stop() before Watch error = %v, want nil", err)
	}
}
