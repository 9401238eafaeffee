package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig configures the SQLite journal backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns caps open connections to the database. Default: 10.
	MaxOpenConns int

	// MaxIdleConns caps idle connections. Default: 5.
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true.
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/journal.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, applies pragmas and initializes the
// schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "journal.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("journal storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("journal schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}
	return nil
}

// Store persists one record.
func (s *SQLiteStorage) Store(ctx context.Context, rec *ConnectionRecord) error {
	var errVal interface{}
	if rec.Error != "" {
		errVal = rec.Error
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (
			id, conn_id, remote_addr, protocol, secure,
			accepted_at, closed_at, requests, error, panicked
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConnID, rec.RemoteAddr, rec.Protocol, rec.Secure,
		rec.AcceptedAt, rec.ClosedAt, rec.Requests, errVal, rec.Panicked,
	)
	if err != nil {
		return fmt.Errorf("storing connection record: %w", err)
	}
	return nil
}

// Query returns records matching q, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, q *Query) ([]*ConnectionRecord, error) {
	where, args := buildWhereClause(q)

	sqlQuery := `SELECT id, conn_id, remote_addr, protocol, secure,
		accepted_at, closed_at, requests, error, panicked FROM connections`
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += " ORDER BY accepted_at DESC"

	limit := defaultQueryLimit
	if q != nil && q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q != nil && q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var records []*ConnectionRecord
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM connections"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting journal records: %w", err)
	}
	return count, nil
}

// Delete removes records matching q.
func (s *SQLiteStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "DELETE FROM connections"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting journal records: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting journal records: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing journal database: %w", err)
	}
	s.logger.Info("journal storage closed")
	return nil
}

func buildWhereClause(q *Query) (string, []interface{}) {
	if q == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if q.Since != nil {
		conditions = append(conditions, "accepted_at >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		conditions = append(conditions, "accepted_at <= ?")
		args = append(args, *q.Until)
	}
	if q.Protocol != "" {
		conditions = append(conditions, "protocol = ?")
		args = append(args, q.Protocol)
	}
	switch q.Outcome {
	case "clean":
		conditions = append(conditions, "error IS NULL AND panicked = 0")
	case "error":
		conditions = append(conditions, "error IS NOT NULL AND panicked = 0")
	case "panic":
		conditions = append(conditions, "panicked = 1")
	}

	where := ""
	for i, c := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

func scanRow(rows *sql.Rows) (*ConnectionRecord, error) {
	var rec ConnectionRecord
	var errVal sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.ConnID, &rec.RemoteAddr, &rec.Protocol, &rec.Secure,
		&rec.AcceptedAt, &rec.ClosedAt, &rec.Requests, &errVal, &rec.Panicked,
	)
	if err != nil {
		return nil, err
	}
	if errVal.Valid {
		rec.Error = errVal.String
	}
	return &rec, nil
}
