// Package bigquery implements records.Store on a BigQuery table.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/records"
	"github.com/google/uuid"
)

const DefaultTable = "statement_files"

// Table identifies the fully qualified files table.
type Table struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (t Table) ref() string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, t.TableID)
}

// Store is the BigQuery implementation of records.Store. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type Store struct {
	client *bigquery.Client
	table  Table
}

var _ records.Store = (*Store)(nil)

// NewStore creates a store with its own BigQuery client.
func NewStore(ctx context.Context, projectID, datasetID, tableID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewStore: project ID is required")
	}
	if tableID == "" {
		tableID = DefaultTable
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{
		client: client,
		table:  Table{ProjectID: projectID, DatasetID: datasetID, TableID: tableID},
	}, nil
}

// Client exposes the shared client for schema migrations.
func (s *Store) Client() *bigquery.Client {
	return s.client
}

// Table returns the table the store reads and writes.
func (s *Store) Table() Table {
	return s.table
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// CreateFile implements records.Store.
func (s *Store) CreateFile(ctx context.Context, f *domain.File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	f.Status = domain.StatusPending
	return InsertFileWithClient(ctx, s.client, s.table, f)
}

// GetFile implements pipeline.RecordStore.
func (s *Store) GetFile(ctx context.Context, fileID string) (*domain.File, error) {
	return GetFileWithClient(ctx, s.client, s.table, fileID)
}

// ListFiles implements records.Store.
func (s *Store) ListFiles(ctx context.Context, filter domain.FileFilter) ([]*domain.File, error) {
	return ListFilesWithClient(ctx, s.client, s.table, filter)
}

// MarkSkipped implements pipeline.RecordStore.
func (s *Store) MarkSkipped(ctx context.Context, fileID, reason string) error {
	return MarkSkippedWithClient(ctx, s.client, s.table, fileID, reason)
}

// MarkProcessing implements pipeline.RecordStore.
func (s *Store) MarkProcessing(ctx context.Context, fileID string, startedAt time.Time) (int64, error) {
	return MarkProcessingWithClient(ctx, s.client, s.table, fileID, startedAt)
}

// MarkFailed implements pipeline.RecordStore.
func (s *Store) MarkFailed(ctx context.Context, fileID string, attempt int64, reason string) error {
	return MarkFailedWithClient(ctx, s.client, s.table, fileID, attempt, reason)
}

// MarkCompleted implements pipeline.RecordStore.
func (s *Store) MarkCompleted(ctx context.Context, fileID string, attempt int64, txs []domain.Transaction) error {
	return MarkCompletedWithClient(ctx, s.client, s.table, fileID, attempt, txs)
}
