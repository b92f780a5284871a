package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
)

// FileStore loads document bytes by the opaque filename recorded on a file.
type FileStore interface {
	ReadBytes(ctx context.Context, filename string) ([]byte, error)
}

// RecordStore persists extraction state. Terminal writes carry the attempt
// number returned by MarkProcessing and must fail with
// domain.ErrStaleAttempt once a newer attempt has started.
type RecordStore interface {
	GetFile(ctx context.Context, fileID string) (*domain.File, error)

	// MarkSkipped sets SKIPPED with the given reason.
	MarkSkipped(ctx context.Context, fileID, reason string) error

	// MarkProcessing sets PROCESSING, clears the error, records the start
	// time and returns the new attempt number.
	MarkProcessing(ctx context.Context, fileID string, startedAt time.Time) (int64, error)

	// MarkFailed sets FAILED with the given reason. Stored transactions are
	// left untouched.
	MarkFailed(ctx context.Context, fileID string, attempt int64, reason string) error

	// MarkCompleted stores the transactions, sets COMPLETED and clears the error.
	MarkCompleted(ctx context.Context, fileID string, attempt int64, txs []domain.Transaction) error
}

// DocumentModelClient sends one request to a document understanding model
// and returns the first text segment of its reply. Empty replies are errors.
type DocumentModelClient interface {
	Complete(ctx context.Context, req ModelRequest) (string, error)
}

// Observer is told about every extraction that wrote a status.
type Observer interface {
	ObserveExtraction(status domain.Status, mimeType string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveExtraction(domain.Status, string, time.Duration) {}
