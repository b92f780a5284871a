// Package records holds the record store implementations for uploaded files
// and their extraction state.
package records

import (
	"context"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/pipeline"
)

// Store is the full record store: the extraction state writes used by the
// coordinator plus the registry operations used by the API and CLI.
type Store interface {
	pipeline.RecordStore

	// CreateFile registers a new file as PENDING. ID, CreatedAt and
	// UpdatedAt are filled in when empty.
	CreateFile(ctx context.Context, f *domain.File) error

	// ListFiles returns files newest first.
	ListFiles(ctx context.Context, filter domain.FileFilter) ([]*domain.File, error)

	Close() error
}
