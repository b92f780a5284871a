package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockExtractor is a mock implementation of Extractor for testing.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, fileID string) (*pipeline.Outcome, error)
}

func (m *MockExtractor) Extract(ctx context.Context, fileID string) (*pipeline.Outcome, error) {
	return m.ExtractFunc(ctx, fileID)
}

type otherJob struct{}

func (otherJob) GetID() string        { return "x" }
func (otherJob) GetType() JobType     { return "other" }
func (otherJob) GetStatus() JobStatus { return JobStatusPending }

func TestExtractHandler_Success(t *testing.T) {
	var gotID string
	var hadDeadline bool
	handler := NewExtractHandler(&MockExtractor{
		ExtractFunc: func(ctx context.Context, fileID string) (*pipeline.Outcome, error) {
			gotID = fileID
			_, hadDeadline = ctx.Deadline()
			return &pipeline.Outcome{FileID: fileID, Status: domain.StatusCompleted}, nil
		},
	}, time.Minute)

	err := handler(context.Background(), &ExtractJob{JobID: "j1", FileID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "f1", gotID)
	assert.True(t, hadDeadline)
}

func TestExtractHandler_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"unsupported", fmt.Errorf("Extract: %w", pipeline.ErrUnsupportedInput), true},
		{"in progress", pipeline.ErrExtractionInProgress, true},
		{"not found", fmt.Errorf("GetFile: %w", domain.ErrFileNotFound), true},
		{"superseded", domain.ErrStaleAttempt, true},
		{"transport", fmt.Errorf("Extract: %w", pipeline.ErrTransport), false},
		{"malformed", pipeline.ErrMalformedOutput, false},
		{"persistence", pipeline.ErrPersistence, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewExtractHandler(&MockExtractor{
				ExtractFunc: func(ctx context.Context, fileID string) (*pipeline.Outcome, error) {
					return &pipeline.Outcome{FileID: fileID, Status: domain.StatusFailed}, tt.err
				},
			}, 0)

			err := handler(context.Background(), &ExtractJob{JobID: "j1", FileID: "f1"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestExtractHandler_UnknownJobType(t *testing.T) {
	handler := NewExtractHandler(&MockExtractor{}, 0)

	err := handler(context.Background(), otherJob{})
	assert.True(t, IsPermanent(err))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("x")))

	base := errors.New("base")
	wrapped := fmt.Errorf("outer: %w", Permanent(base))
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "outer: base", wrapped.Error())
}
