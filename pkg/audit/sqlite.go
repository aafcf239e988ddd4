package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5.
	MaxIdleConns int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	logger     *slog.Logger
}

// NewSQLiteStore creates a SQLite audit store, initializing the schema
// and enabling WAL mode.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("audit db path cannot be empty")
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "audit.sqlite"),
	}

	if err := s.initialize(config); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit store initialized", "path", config.Path)
	return s, nil
}

func (s *SQLiteStore) initialize(config *SQLiteConfig) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		kind TEXT NOT NULL,
		identifier TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		endpoint TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		retry_after INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_identifier ON audit_events(identifier, timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}

	var err error
	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO audit_events (
			id, timestamp, kind, identifier, user_id, ip,
			endpoint, reason, message, retry_after
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	return nil
}

// Insert appends one event.
func (s *SQLiteStore) Insert(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	_, err := s.insertStmt.ExecContext(ctx,
		event.ID,
		event.Timestamp.UnixNano(),
		event.Kind,
		event.Identifier,
		event.UserID,
		event.IP,
		event.Endpoint,
		event.Reason,
		event.Message,
		event.RetryAfter,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]*Event, error) {
	where, args := buildWhere(q)
	query := `
		SELECT id, timestamp, kind, identifier, user_id, ip,
		       endpoint, reason, message, retry_after
		FROM audit_events` + where + `
		ORDER BY timestamp DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Identifier, &e.UserID,
			&e.IP, &e.Endpoint, &e.Reason, &e.Message, &e.RetryAfter); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of matching events.
func (s *SQLiteStore) Count(ctx context.Context, q Query) (int64, error) {
	where, args := buildWhere(q)
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// DeleteBefore removes events older than cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_events WHERE timestamp < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	return s.db.Close()
}

func buildWhere(q Query) (string, []any) {
	var conds []string
	var args []any

	if q.Identifier != "" {
		conds = append(conds, "identifier = ?")
		args = append(args, q.Identifier)
	}
	if q.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, q.Kind)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, q.Until.UnixNano())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
