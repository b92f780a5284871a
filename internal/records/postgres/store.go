// Package postgres implements records.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/records"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of records.Store.
type Store struct {
	db    DB
	close func()
	now   func() time.Time
}

var _ records.Store = (*Store)(nil)

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	s := NewStore(pool)
	s.close = pool.Close
	return s, nil
}

// NewStore wraps an existing connection. Close is a no-op unless the store
// was created by Connect.
func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS statement_files (
	id                    TEXT PRIMARY KEY,
	filename              TEXT NOT NULL,
	original_name         TEXT NOT NULL DEFAULT '',
	mime_type             TEXT NOT NULL DEFAULT '',
	size_bytes            BIGINT NOT NULL DEFAULT 0,
	status                TEXT NOT NULL,
	error_message         TEXT,
	transactions          JSONB,
	attempt               BIGINT NOT NULL DEFAULT 0,
	processing_started_at TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS statement_files_status_idx ON statement_files (status);
CREATE INDEX IF NOT EXISTS statement_files_created_idx ON statement_files (created_at DESC);
`

// EnsureSchema creates the files table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, filename, original_name, mime_type, size_bytes, status,
	       error_message, transactions, attempt, processing_started_at,
	       created_at, updated_at
	FROM statement_files`

// scanFile maps one row onto a domain.File.
func scanFile(row pgx.Row) (*domain.File, error) {
	var (
		f         domain.File
		status    string
		errMsg    *string
		txsJSON   []byte
		startedAt *time.Time
	)
	err := row.Scan(&f.ID, &f.Filename, &f.OriginalName, &f.MimeType, &f.Size, &status,
		&errMsg, &txsJSON, &f.Attempt, &startedAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	f.Status, err = domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", f.ID, err)
	}
	if errMsg != nil {
		f.Error = *errMsg
	}
	f.ProcessingStartedAt = startedAt
	if len(txsJSON) > 0 {
		if err := json.Unmarshal(txsJSON, &f.Transactions); err != nil {
			return nil, fmt.Errorf("file %s: decoding transactions: %w", f.ID, err)
		}
	}
	return &f, nil
}

// CreateFile implements records.Store.
func (s *Store) CreateFile(ctx context.Context, f *domain.File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := s.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	f.Status = domain.StatusPending

	_, err := s.db.Exec(ctx, `
		INSERT INTO statement_files (id, filename, original_name, mime_type, size_bytes, status, attempt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
	`, f.ID, f.Filename, f.OriginalName, f.MimeType, f.Size, f.Status.String(), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateFile: %w", err)
	}
	return nil
}

// GetFile implements pipeline.RecordStore.
func (s *Store) GetFile(ctx context.Context, fileID string) (*domain.File, error) {
	f, err := scanFile(s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, fileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("GetFile: %s: %w", fileID, domain.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetFile: %w", err)
	}
	return f, nil
}

// ListFiles implements records.Store.
func (s *Store) ListFiles(ctx context.Context, filter domain.FileFilter) ([]*domain.File, error) {
	query := selectColumns
	var args []any
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}
	defer rows.Close()

	files := []*domain.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ListFiles: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}
	return files, nil
}

// MarkSkipped implements pipeline.RecordStore.
func (s *Store) MarkSkipped(ctx context.Context, fileID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE statement_files
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`, fileID, domain.StatusSkipped.String(), reason, s.now())
	if err != nil {
		return fmt.Errorf("MarkSkipped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("MarkSkipped: %s: %w", fileID, domain.ErrFileNotFound)
	}
	return nil
}

// MarkProcessing implements pipeline.RecordStore. The attempt counter is
// incremented in the same statement that claims the file.
func (s *Store) MarkProcessing(ctx context.Context, fileID string, startedAt time.Time) (int64, error) {
	var attempt int64
	err := s.db.QueryRow(ctx, `
		UPDATE statement_files
		SET status = $2, error_message = NULL, attempt = attempt + 1,
		    processing_started_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING attempt
	`, fileID, domain.StatusProcessing.String(), startedAt).Scan(&attempt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("MarkProcessing: %s: %w", fileID, domain.ErrFileNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("MarkProcessing: %w", err)
	}
	return attempt, nil
}

// MarkFailed implements pipeline.RecordStore.
func (s *Store) MarkFailed(ctx context.Context, fileID string, attempt int64, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE statement_files
		SET status = $3, error_message = $4, updated_at = $5
		WHERE id = $1 AND attempt = $2
	`, fileID, attempt, domain.StatusFailed.String(), reason, s.now())
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("MarkFailed: %s attempt %d: %w", fileID, attempt, domain.ErrStaleAttempt)
	}
	return nil
}

// MarkCompleted implements pipeline.RecordStore.
func (s *Store) MarkCompleted(ctx context.Context, fileID string, attempt int64, txs []domain.Transaction) error {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	payload, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("MarkCompleted: encoding transactions: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE statement_files
		SET status = $3, error_message = NULL, transactions = $4::jsonb, updated_at = $5
		WHERE id = $1 AND attempt = $2
	`, fileID, attempt, domain.StatusCompleted.String(), string(payload), s.now())
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("MarkCompleted: %s attempt %d: %w", fileID, attempt, domain.ErrStaleAttempt)
	}
	return nil
}
