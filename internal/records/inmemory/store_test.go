package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFile(t *testing.T, s *Store) *domain.File {
	t.Helper()
	f := &domain.File{Filename: "abc.pdf", OriginalName: "statement.pdf", MimeType: "application/pdf", Size: 10}
	require.NoError(t, s.CreateFile(context.Background(), f))
	return f
}

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()
	f := newFile(t, s)

	assert.NotEmpty(t, f.ID)
	got, err := s.GetFile(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "statement.pdf", got.OriginalName)

	// Mutating the returned copy must not leak into the store.
	got.Status = domain.StatusFailed
	again, _ := s.GetFile(context.Background(), f.ID)
	assert.Equal(t, domain.StatusPending, again.Status)

	assert.Error(t, s.CreateFile(context.Background(), &domain.File{ID: f.ID}))
}

func TestStore_GetMissing(t *testing.T) {
	_, err := NewStore().GetFile(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	f := newFile(t, s)

	require.NoError(t, s.MarkSkipped(ctx, f.ID, "Unsupported file type: text/plain"))
	got, _ := s.GetFile(ctx, f.ID)
	assert.Equal(t, domain.StatusSkipped, got.Status)
	assert.Equal(t, "Unsupported file type: text/plain", got.Error)

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	attempt, err := s.MarkProcessing(ctx, f.ID, started)
	require.NoError(t, err)
	assert.Equal(t, int64(1), attempt)

	got, _ = s.GetFile(ctx, f.ID)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.ProcessingStartedAt)
	assert.True(t, started.Equal(*got.ProcessingStartedAt))

	txs := []domain.Transaction{{Date: "2024-01-01", Description: "X", Amount: decimal.NewFromInt(5), Type: domain.Debit}}
	require.NoError(t, s.MarkCompleted(ctx, f.ID, attempt, txs))
	got, _ = s.GetFile(ctx, f.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Len(t, got.Transactions, 1)

	// A failed retry keeps the earlier transactions in storage.
	attempt, err = s.MarkProcessing(ctx, f.ID, started)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, f.ID, attempt, "boom"))
	got, _ = s.GetFile(ctx, f.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Len(t, got.Transactions, 1)
	assert.Nil(t, got.VisibleTransactions())
}

func TestStore_StaleAttemptRejected(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	f := newFile(t, s)

	first, err := s.MarkProcessing(ctx, f.ID, time.Now())
	require.NoError(t, err)
	second, err := s.MarkProcessing(ctx, f.ID, time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkCompleted(ctx, f.ID, first, nil), domain.ErrStaleAttempt)
	assert.ErrorIs(t, s.MarkFailed(ctx, f.ID, first, "late"), domain.ErrStaleAttempt)

	require.NoError(t, s.MarkCompleted(ctx, f.ID, second, nil))
	got, _ := s.GetFile(ctx, f.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.NotNil(t, got.Transactions)
	assert.Empty(t, got.Transactions)
}

func TestStore_ListFiles(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateFile(ctx, &domain.File{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, s.MarkSkipped(ctx, "b", "nope"))

	all, err := s.ListFiles(ctx, domain.FileFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	skipped := domain.StatusSkipped
	only, err := s.ListFiles(ctx, domain.FileFilter{Status: &skipped})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "b", only[0].ID)

	page, err := s.ListFiles(ctx, domain.FileFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	empty, err := s.ListFiles(ctx, domain.FileFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
