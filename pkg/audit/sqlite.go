package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // driver "sqlite" (pure Go)
)

// Driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver. Default: DriverModernc.
	Driver string

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/audit.db",
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore persists entries in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
	now    func() time.Time

	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the audit database.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Path == "" {
		return nil, storageError("sqlite", "open", errors.New("path cannot be empty"))
	}
	driver := config.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, config.Path)
	if err != nil {
		return nil, storageError("sqlite", "open", err)
	}
	// SQLite supports a single writer; one connection also keeps
	// ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger.With("component", "audit.sqlite", "driver", driver),
		now:    time.Now,
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return storageError("sqlite", "enable_wal", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return storageError("sqlite", "set_busy_timeout", err)
		}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return storageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, s.now().UnixNano()); err != nil {
		return storageError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return storageError("sqlite", "get_schema_version", err)
	}
	if !version.Valid || version.Int64 != SchemaVersion {
		return storageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	return nil
}

// Record inserts entry.
func (s *SQLiteStore) Record(ctx context.Context, entry *Entry) error {
	if err := prepare(entry, s.now()); err != nil {
		return err
	}

	moduleIDs, err := json.Marshal(entry.ModuleIDs)
	if err != nil {
		return storageError("sqlite", "encode", err)
	}
	residual, err := json.Marshal(entry.Residual)
	if err != nil {
		return storageError("sqlite", "encode", err)
	}
	corrections, err := json.Marshal(entry.Corrections)
	if err != nil {
		return storageError("sqlite", "encode", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_runs (
			id, run_id, created_at, document_type, module_ids, policy_version,
			outcome, iterations_used, input_hash, final_hash, residual, corrections,
			input_text, final_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RunID, entry.CreatedAt.UnixNano(), entry.DocumentType, string(moduleIDs), entry.PolicyVersion,
		entry.Outcome, entry.IterationsUsed, entry.InputHash, entry.FinalHash, string(residual), string(corrections),
		nullString(entry.InputText), nullString(entry.FinalText),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storageError("sqlite", "record", ErrDuplicateRun)
		}
		return storageError("sqlite", "record", err)
	}
	return nil
}

// Get returns the entry for runID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM audit_runs WHERE run_id = ?", runID)
	if err != nil {
		return nil, storageError("sqlite", "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, storageError("sqlite", "get", err)
		}
		return nil, ErrNotFound
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, storageError("sqlite", "scan", err)
	}
	return e, nil
}

// List returns matching entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, q *Query) ([]*Entry, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := buildWhereClause(q)

	query := "SELECT " + selectColumns + " FROM audit_runs"
	if where != "" {
		query += " WHERE " + where
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, run_id DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("sqlite", "list", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageError("sqlite", "scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("sqlite", "list", err)
	}
	return entries, nil
}

// Count returns the number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_runs").Scan(&n); err != nil {
		return 0, storageError("sqlite", "count", err)
	}
	return n, nil
}

// DeleteBefore removes entries created before cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_runs WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, storageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("sqlite", "delete", err)
	}
	return n, nil
}

// Trim removes the oldest entries beyond keep.
func (s *SQLiteStore) Trim(ctx context.Context, keep int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_runs WHERE id NOT IN (
			SELECT id FROM audit_runs ORDER BY created_at DESC, run_id DESC LIMIT ?
		)`, max(keep, 0))
	if err != nil {
		return 0, storageError("sqlite", "trim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("sqlite", "trim", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := s.db.Close(); cerr != nil {
			err = storageError("sqlite", "close", cerr)
			return
		}
		s.logger.Info("audit store closed")
	})
	return err
}

func buildWhereClause(q *Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, q.Outcome)
	}
	if q.DocumentType != "" {
		conditions = append(conditions, "document_type = ?")
		args = append(args, q.DocumentType)
	}
	if q.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, q.Until.UnixNano())
	}
	return strings.Join(conditions, " AND "), args
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e                    Entry
		createdAt            int64
		documentType, policy sql.NullString
		moduleIDs, residual  sql.NullString
		corrections          string
		inputText, finalText sql.NullString
	)
	err := rows.Scan(
		&e.ID, &e.RunID, &createdAt, &documentType, &moduleIDs, &policy,
		&e.Outcome, &e.IterationsUsed, &e.InputHash, &e.FinalHash, &residual, &corrections,
		&inputText, &finalText,
	)
	if err != nil {
		return nil, err
	}

	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.DocumentType = documentType.String
	e.PolicyVersion = policy.String
	e.InputText = inputText.String
	e.FinalText = finalText.String

	if moduleIDs.Valid && moduleIDs.String != "" {
		if err := json.Unmarshal([]byte(moduleIDs.String), &e.ModuleIDs); err != nil {
			return nil, fmt.Errorf("decode module ids: %w", err)
		}
	}
	if residual.Valid && residual.String != "" {
		if err := json.Unmarshal([]byte(residual.String), &e.Residual); err != nil {
			return nil, fmt.Errorf("decode residual failures: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(corrections), &e.Corrections); err != nil {
		return nil, fmt.Errorf("decode corrections: %w", err)
	}
	return &e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation matches the constraint error text of both drivers.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
