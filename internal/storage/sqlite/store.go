package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Store is a SQLite implementation of InvocationStore
type Store struct {
	db *sql.DB
}

// Ensure Store implements InvocationStore
var _ ports.InvocationStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			signature TEXT NOT NULL,
			target_type TEXT,
			arguments TEXT,
			outcome TEXT NOT NULL,
			return_value TEXT,
			outputs TEXT,
			error_message TEXT,
			started_at_ns INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_method ON invocations(method)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at_ns)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveInvocation(ctx context.Context, rec *domain.InvocationRecord) error {
	query := `INSERT INTO invocations (id, method, signature, target_type, arguments, outcome,
	              return_value, outputs, error_message, started_at_ns, duration_ns)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Method, rec.Signature, nullString(rec.TargetType), nullBytes(rec.Arguments), rec.Outcome,
		nullBytes(rec.ReturnValue), nullBytes(rec.Outputs), nullString(rec.Error),
		rec.StartedAt.UnixNano(), int64(rec.Duration))
	if err != nil {
		return fmt.Errorf("failed to save invocation: %w", err)
	}

	return nil
}

const selectColumns = `SELECT id, method, signature, target_type, arguments, outcome,
	return_value, outputs, error_message, started_at_ns, duration_ns FROM invocations`

func (s *Store) GetInvocation(ctx context.Context, id string) (*domain.InvocationRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invocation %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}

	return rec, nil
}

func (s *Store) ListInvocations(ctx context.Context, opts ports.ListOptions) ([]*domain.InvocationRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = ports.DefaultListLimit
	}

	query := selectColumns
	args := []any{}
	if opts.Method != "" {
		query += ` WHERE method = ?`
		args = append(args, opts.Method)
	}
	query += ` ORDER BY started_at_ns DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var result []*domain.InvocationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.InvocationRecord, error) {
	var rec domain.InvocationRecord
	var targetType, arguments, returnValue, outputs, errMsg sql.NullString
	var startedAt, duration int64

	err := row.Scan(&rec.ID, &rec.Method, &rec.Signature, &targetType, &arguments, &rec.Outcome,
		&returnValue, &outputs, &errMsg, &startedAt, &duration)
	if err != nil {
		return nil, err
	}

	rec.TargetType = targetType.String
	rec.Error = errMsg.String
	rec.Arguments = rawOrNil(arguments)
	rec.ReturnValue = rawOrNil(returnValue)
	rec.Outputs = rawOrNil(outputs)
	rec.StartedAt = time.Unix(0, startedAt)
	rec.Duration = time.Duration(duration)

	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

func rawOrNil(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
