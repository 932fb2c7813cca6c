package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"relay-hq/sentinel/pkg/governance"
	"relay-hq/sentinel/pkg/governance/storage"
)

// MaintenanceConfig configures the background maintenance scheduler.
type MaintenanceConfig struct {
	// CleanupSchedule is the cron expression for the sweep that evicts
	// idle rate limit buckets and prunes persisted records.
	CleanupSchedule string

	// TickInterval is the period of the governance tick that refreshes
	// breaker evaluation and gauges. Defaults to 1s.
	TickInterval time.Duration

	// RetentionDays is how long persisted records are kept. Zero disables
	// storage pruning.
	RetentionDays int
}

// Maintenance runs the periodic upkeep of the governance components: a
// cron-scheduled cleanup sweep and a fine-grained tick loop.
type Maintenance struct {
	config   MaintenanceConfig
	governor *governance.Governor
	recorder storage.Backend
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewMaintenance creates a maintenance scheduler.
func NewMaintenance(cfg MaintenanceConfig, gov *governance.Governor, recorder storage.Backend) *Maintenance {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Maintenance{
		config:   cfg,
		governor: gov,
		recorder: recorder,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "maintenance"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduled cleanup and the tick loop.
//
// Common cron expressions:
//   - "*/5 * * * *" - Every 5 minutes
//   - "0 * * * *"   - Hourly
//   - "0 3 * * *"   - Daily at 3 AM
//
// If CleanupSchedule is empty, only the tick loop runs.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("maintenance already running")
	}

	if m.config.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(m.config.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", m.config.CleanupSchedule, err)
		}
		if _, err := m.cron.AddFunc(m.config.CleanupSchedule, func() {
			m.runCleanup(ctx)
		}); err != nil {
			return fmt.Errorf("failed to schedule cleanup: %w", err)
		}
		m.cron.Start()
	} else {
		m.logger.Info("cleanup schedule not configured, skipping sweep")
	}

	m.wg.Add(1)
	go m.tickLoop(ctx)

	m.running = true
	m.logger.Info("maintenance started",
		"schedule", m.config.CleanupSchedule,
		"tick_interval", m.config.TickInterval.String(),
		"retention_days", m.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	return nil
}

// tickLoop drives time-based breaker re-evaluation and gauge refresh.
func (m *Maintenance) tickLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.governor.Tick()
		}
	}
}

// runCleanup executes one cleanup sweep: idle bucket eviction plus storage
// retention pruning.
func (m *Maintenance) runCleanup(ctx context.Context) {
	evicted := m.governor.CleanupBuckets()

	pruned := 0
	if m.recorder != nil && m.config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -m.config.RetentionDays)
		n, err := m.recorder.Cleanup(ctx, cutoff)
		if err != nil {
			m.logger.Error("storage retention sweep failed", "error", err)
		} else {
			pruned = n
		}
	}

	if evicted > 0 || pruned > 0 {
		m.logger.Info("cleanup sweep completed",
			"evicted_buckets", evicted,
			"pruned_records", pruned,
		)
	} else {
		m.logger.Debug("cleanup sweep completed, nothing to do")
	}
}

// Stop stops the scheduler and waits for running jobs to complete.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	close(m.stopCh)
	m.wg.Wait()

	cronCtx := m.cron.Stop()
	<-cronCtx.Done() // Wait for running jobs to finish

	m.running = false
	m.logger.Info("maintenance stopped")
}

// IsRunning returns true if the scheduler is running.
func (m *Maintenance) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NextCleanup returns the next scheduled cleanup time, if any.
func (m *Maintenance) NextCleanup() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
