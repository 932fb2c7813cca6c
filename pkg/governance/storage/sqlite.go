package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for durable flight
// recording, suitable for single-instance deployments where rotated
// windows and breaker transitions should survive restarts for
// post-incident analysis.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent
// performance.
type SQLiteBackend struct {
	db *sql.DB

	saveWindowStmt     *sql.Stmt
	saveTransitionStmt *sql.Stmt
}

// NewSQLiteBackend opens (or creates) the database at dbPath and
// initializes the schema.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	backend := &SQLiteBackend{db: db}
	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return backend, nil
}

// initSchema creates the recorder tables if they don't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS perf_windows (
		start_at        INTEGER NOT NULL,
		end_at          INTEGER NOT NULL,
		total           INTEGER NOT NULL,
		success_count   INTEGER NOT NULL,
		failure_count   INTEGER NOT NULL,
		max_concurrency INTEGER NOT NULL,
		sum_duration_ms REAL NOT NULL,
		p50             REAL NOT NULL,
		p90             REAL NOT NULL,
		p99             REAL NOT NULL,
		recorded_at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_perf_windows_end_at ON perf_windows(end_at);

	CREATE TABLE IF NOT EXISTS breaker_transitions (
		breaker      TEXT NOT NULL,
		from_state   TEXT NOT NULL,
		to_state     TEXT NOT NULL,
		failure_rate REAL NOT NULL,
		at           INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_breaker_transitions_at ON breaker_transitions(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements pre-compiles the hot-path inserts.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveWindowStmt, err = s.db.Prepare(`
		INSERT INTO perf_windows (start_at, end_at, total, success_count, failure_count,
			max_concurrency, sum_duration_ms, p50, p90, p99, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.saveTransitionStmt, err = s.db.Prepare(`
		INSERT INTO breaker_transitions (breaker, from_state, to_state, failure_rate, at)
		VALUES (?, ?, ?, ?, ?)
	`)
	return err
}

// SaveWindow appends a rotated window record.
func (s *SQLiteBackend) SaveWindow(ctx context.Context, rec *WindowRecord) error {
	if rec == nil {
		return fmt.Errorf("window record cannot be nil")
	}
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := s.saveWindowStmt.ExecContext(ctx,
		rec.StartAt.UnixMilli(), rec.EndAt.UnixMilli(),
		rec.Total, rec.SuccessCount, rec.FailureCount,
		rec.MaxConcurrency, rec.SumDurationMs,
		rec.P50, rec.P90, rec.P99,
		recordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save window record: %w", err)
	}
	return nil
}

// SaveTransition appends a breaker transition record.
func (s *SQLiteBackend) SaveTransition(ctx context.Context, rec *TransitionRecord) error {
	if rec == nil {
		return fmt.Errorf("transition record cannot be nil")
	}
	_, err := s.saveTransitionStmt.ExecContext(ctx,
		rec.Breaker, rec.FromState, rec.ToState, rec.FailureRate, rec.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save transition record: %w", err)
	}
	return nil
}

// RecentWindows returns up to limit window records, newest first.
func (s *SQLiteBackend) RecentWindows(ctx context.Context, limit int) ([]*WindowRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_at, end_at, total, success_count, failure_count,
			max_concurrency, sum_duration_ms, p50, p90, p99, recorded_at
		FROM perf_windows ORDER BY end_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	defer rows.Close()

	var out []*WindowRecord
	for rows.Next() {
		var rec WindowRecord
		var startAt, endAt, recordedAt int64
		if err := rows.Scan(&startAt, &endAt, &rec.Total, &rec.SuccessCount,
			&rec.FailureCount, &rec.MaxConcurrency, &rec.SumDurationMs,
			&rec.P50, &rec.P90, &rec.P99, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan window row: %w", err)
		}
		rec.StartAt = time.UnixMilli(startAt)
		rec.EndAt = time.UnixMilli(endAt)
		rec.RecordedAt = time.UnixMilli(recordedAt)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// RecentTransitions returns up to limit transition records, newest first.
func (s *SQLiteBackend) RecentTransitions(ctx context.Context, limit int) ([]*TransitionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT breaker, from_state, to_state, failure_rate, at
		FROM breaker_transitions ORDER BY at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []*TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		var at int64
		if err := rows.Scan(&rec.Breaker, &rec.FromState, &rec.ToState, &rec.FailureRate, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition row: %w", err)
		}
		rec.At = time.UnixMilli(at)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Cleanup removes records older than the cutoff.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := olderThan.UnixMilli()

	res, err := s.db.ExecContext(ctx, `DELETE FROM perf_windows WHERE end_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup windows: %w", err)
	}
	windows, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM breaker_transitions WHERE at < ?`, cutoff)
	if err != nil {
		return int(windows), fmt.Errorf("failed to cleanup transitions: %w", err)
	}
	transitions, _ := res.RowsAffected()

	return int(windows + transitions), nil
}

// Close releases prepared statements and the database handle.
func (s *SQLiteBackend) Close() error {
	if s.saveWindowStmt != nil {
		s.saveWindowStmt.Close()
	}
	if s.saveTransitionStmt != nil {
		s.saveTransitionStmt.Close()
	}
	return s.db.Close()
}
