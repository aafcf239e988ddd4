package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"edustack-hq/turnstile/pkg/quota"
)

// SQLiteBackend implements quota.Backend using SQLite for persistence.
// Suitable for single-instance deployments where usage accounting must
// survive restarts.
//
// The database runs in write-ahead log (WAL) mode; a background
// goroutine checkpoints the WAL periodically.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	getStmt  *sql.Stmt
	listStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes.
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite storage backend with default
// settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		period_type TEXT NOT NULL,
		period_start INTEGER NOT NULL,
		period_end INTEGER NOT NULL,
		total_requests INTEGER NOT NULL DEFAULT 0,
		total_input_tokens INTEGER NOT NULL DEFAULT 0,
		total_output_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		total_cost REAL NOT NULL DEFAULT 0,
		endpoint_usage TEXT NOT NULL DEFAULT '{}'
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_period
		ON usage_records(user_id, period_type, period_start);
	CREATE INDEX IF NOT EXISTS idx_usage_list
		ON usage_records(period_type, period_start);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT user_id, period_type, period_start, period_end,
		       total_requests, total_input_tokens, total_output_tokens,
		       total_tokens, total_cost, endpoint_usage
		FROM usage_records
		WHERE user_id = ? AND period_type = ? AND period_start = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT user_id, period_type, period_start, period_end,
		       total_requests, total_input_tokens, total_output_tokens,
		       total_tokens, total_cost, endpoint_usage
		FROM usage_records
		WHERE period_type = ? AND period_start = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Apply runs every mutation in one transaction. Each
// mutation reads its current row, folds the sample in, and writes the
// merged row back; a failure at any point rolls the whole batch back.
func (s *SQLiteBackend) Apply(ctx context.Context, muts ...quota.Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	for _, mut := range muts {
		if mut.UserID == "" {
			return fmt.Errorf("user id cannot be empty")
		}
	}

	// The pool is capped at one connection, so the transaction holds
	// the write lock for the whole read-modify-write sequence and no
	// other writer can interleave.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mut := range muts {
		if err := s.applyOne(ctx, tx, mut); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) applyOne(ctx context.Context, tx *sql.Tx, mut quota.Mutation) error {
	rec, err := scanRecord(tx.StmtContext(ctx, s.getStmt).QueryRowContext(ctx,
		mut.UserID, mut.PeriodType, mut.PeriodStart.Unix()))
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &quota.UsageRecord{
			UserID:      mut.UserID,
			PeriodType:  mut.PeriodType,
			PeriodStart: mut.PeriodStart.UTC(),
			PeriodEnd:   mut.PeriodEnd.UTC(),
		}
	}
	rec.Accumulate(mut)

	endpointJSON, err := json.Marshal(rec.Endpoints)
	if err != nil {
		return fmt.Errorf("failed to marshal endpoint usage: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_records (
			user_id, period_type, period_start, period_end,
			total_requests, total_input_tokens, total_output_tokens,
			total_tokens, total_cost, endpoint_usage
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, period_type, period_start) DO UPDATE SET
			total_requests = excluded.total_requests,
			total_input_tokens = excluded.total_input_tokens,
			total_output_tokens = excluded.total_output_tokens,
			total_tokens = excluded.total_tokens,
			total_cost = excluded.total_cost,
			endpoint_usage = excluded.endpoint_usage
	`,
		rec.UserID,
		rec.PeriodType,
		rec.PeriodStart.Unix(),
		rec.PeriodEnd.Unix(),
		rec.TotalRequests,
		rec.TotalInputTokens,
		rec.TotalOutputTokens,
		rec.TotalTokens,
		rec.TotalCost,
		string(endpointJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert usage record: %w", err)
	}
	return nil
}

// Get returns the record for a user and period, or nil when absent.
func (s *SQLiteBackend) Get(ctx context.Context, userID, periodType string, periodStart time.Time) (*quota.UsageRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	return scanRecord(s.getStmt.QueryRowContext(ctx, userID, periodType, periodStart.Unix()))
}

// List returns every record for the period, unordered.
func (s *SQLiteBackend) List(ctx context.Context, periodType string, periodStart time.Time) ([]*quota.UsageRecord, error) {
	rows, err := s.listStmt.QueryContext(ctx, periodType, periodStart.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []*quota.UsageRecord
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Close stops the checkpoint goroutine and closes the database.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.getStmt != nil {
			s.getStmt.Close()
		}
		if s.listStmt != nil {
			s.listStmt.Close()
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecordRow(row rowScanner) (*quota.UsageRecord, error) {
	var (
		rec          quota.UsageRecord
		periodStart  int64
		periodEnd    int64
		endpointJSON string
	)

	err := row.Scan(
		&rec.UserID,
		&rec.PeriodType,
		&periodStart,
		&periodEnd,
		&rec.TotalRequests,
		&rec.TotalInputTokens,
		&rec.TotalOutputTokens,
		&rec.TotalTokens,
		&rec.TotalCost,
		&endpointJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan usage record: %w", err)
	}

	rec.PeriodStart = time.Unix(periodStart, 0).UTC()
	rec.PeriodEnd = time.Unix(periodEnd, 0).UTC()
	rec.Endpoints = make(map[string]quota.EndpointUsage)
	if endpointJSON != "" {
		if err := json.Unmarshal([]byte(endpointJSON), &rec.Endpoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal endpoint usage: %w", err)
		}
	}
	return &rec, nil
}

func scanRecord(row *sql.Row) (*quota.UsageRecord, error) {
	rec, err := scanRecordRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}
