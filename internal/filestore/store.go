package filestore

import (
	"context"
	"io"

	"github.com/dvloznov/statement-review/internal/pipeline"
)

// Store is a file store that also accepts uploads.
type Store interface {
	pipeline.FileStore
	Write(ctx context.Context, filename, contentType string, r io.Reader) (int64, error)
	Delete(ctx context.Context, filename string) error
	Close() error
}

var (
	_ Store = (*Local)(nil)
	_ Store = (*GCS)(nil)
)
