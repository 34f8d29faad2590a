package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"guardian-hq/guardian/pkg/audit"
	"guardian-hq/guardian/pkg/guard"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite" (pure Go,
	// default) or "sqlite3" (cgo).
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		Driver:       "sqlite",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id            TEXT PRIMARY KEY,
	ts            TIMESTAMP NOT NULL,
	tool          TEXT NOT NULL,
	mode          TEXT NOT NULL,
	allow         INTEGER NOT NULL,
	rules_checked INTEGER NOT NULL,
	rules_failed  INTEGER NOT NULL,
	latency_ms    REAL NOT NULL,
	violations    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_entries(ts);
CREATE INDEX IF NOT EXISTS idx_audit_tool ON audit_entries(tool);
`

// SQLiteStorage implements the audit.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend. It initializes
// the schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = "sqlite"
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	return nil
}

// Store persists an audit entry.
func (s *SQLiteStorage) Store(ctx context.Context, entry *guard.AuditEntry) error {
	violations, err := json.Marshal(entry.Violations)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal_violations", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, ts, tool, mode, allow,
			rules_checked, rules_failed, latency_ms, violations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, entry.Tool, string(entry.Mode), boolToInt(entry.Allow),
		entry.RulesChecked, entry.RulesFailed, entry.LatencyMS, string(violations),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "insert", err)
	}
	return nil
}

// Query returns entries matching the query, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*guard.AuditEntry, error) {
	where, args := buildWhere(q)

	query := "SELECT id, ts, tool, mode, allow, rules_checked, rules_failed, latency_ms, violations FROM audit_entries" +
		where + " ORDER BY ts DESC"
	if q != nil && q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var entries []*guard.AuditEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	return entries, nil
}

// Count returns the number of entries matching the query.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhere(q)

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes entries matching the query.
func (s *SQLiteStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhere(q)

	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries"+where, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "rows_affected", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// buildWhere renders the WHERE clause for a query.
func buildWhere(q *audit.Query) (string, []any) {
	if q == nil {
		return "", nil
	}

	var (
		clauses []string
		args    []any
	)
	if q.Tool != "" {
		clauses = append(clauses, "tool = ?")
		args = append(args, q.Tool)
	}
	if q.Allow != nil {
		clauses = append(clauses, "allow = ?")
		args = append(args, boolToInt(*q.Allow))
	}
	if q.StartTime != nil {
		clauses = append(clauses, "ts >= ?")
		args = append(args, *q.StartTime)
	}
	if q.EndTime != nil {
		clauses = append(clauses, "ts <= ?")
		args = append(args, *q.EndTime)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanEntry reads a single audit entry row.
func scanEntry(rows *sql.Rows) (*guard.AuditEntry, error) {
	var (
		entry      guard.AuditEntry
		mode       string
		allow      int
		violations string
	)
	err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Tool, &mode, &allow,
		&entry.RulesChecked, &entry.RulesFailed, &entry.LatencyMS, &violations)
	if err != nil {
		return nil, err
	}
	entry.Mode = guard.Mode(mode)
	entry.Allow = allow != 0
	if err := json.Unmarshal([]byte(violations), &entry.Violations); err != nil {
		return nil, err
	}
	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
