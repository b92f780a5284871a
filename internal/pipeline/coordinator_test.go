package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/dvloznov/statement-review/internal/records/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileStore is a mock implementation of FileStore for testing.
type MockFileStore struct {
	ReadBytesFunc func(ctx context.Context, filename string) ([]byte, error)
}

func (m *MockFileStore) ReadBytes(ctx context.Context, filename string) ([]byte, error) {
	if m.ReadBytesFunc != nil {
		return m.ReadBytesFunc(ctx, filename)
	}
	return []byte("%PDF-1.4"), nil
}

// MockModelClient is a mock implementation of DocumentModelClient that
// records its calls.
type MockModelClient struct {
	CompleteFunc func(ctx context.Context, req pipeline.ModelRequest) (string, error)

	mu       sync.Mutex
	calls    int
	requests []pipeline.ModelRequest
}

func (m *MockModelClient) Complete(ctx context.Context, req pipeline.ModelRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return `{"transactions": []}`, nil
}

func (m *MockModelClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (o *recordingObserver) ObserveExtraction(status domain.Status, mimeType string, elapsed time.Duration) {
	o.mu.Lock()
	o.statuses = append(o.statuses, status)
	o.mu.Unlock()
}

// failingRecords wraps the in-memory store and lets a test break single writes.
type failingRecords struct {
	*inmemory.Store
	MarkProcessingErr error
	MarkCompletedErr  error
}

func (f *failingRecords) MarkProcessing(ctx context.Context, id string, at time.Time) (int64, error) {
	if f.MarkProcessingErr != nil {
		return 0, f.MarkProcessingErr
	}
	return f.Store.MarkProcessing(ctx, id, at)
}

func (f *failingRecords) MarkCompleted(ctx context.Context, id string, attempt int64, txs []domain.Transaction) error {
	if f.MarkCompletedErr != nil {
		return f.MarkCompletedErr
	}
	return f.Store.MarkCompleted(ctx, id, attempt, txs)
}

const reply = "```json\n" + `{"transactions": [
	{"date": "2024-01-15", "description": "TESCO STORES", "amount": 45.67, "type": "DEBIT", "balance": 1234.56, "category": "Groceries"},
	{"date": "2024-01-16", "description": "SALARY", "amount": 2500, "type": "CREDIT"}
]}` + "\n```"

func register(t *testing.T, store *inmemory.Store, mime string) string {
	t.Helper()
	f := &domain.File{Filename: "stored-name", OriginalName: "statement", MimeType: mime}
	require.NoError(t, store.CreateFile(context.Background(), f))
	return f.ID
}

func TestExtract_Completed(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	var readName string
	files := &MockFileStore{ReadBytesFunc: func(ctx context.Context, filename string) ([]byte, error) {
		readName = filename
		return []byte("pdf bytes"), nil
	}}
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		return reply, nil
	}}
	obs := &recordingObserver{}

	c := pipeline.NewCoordinator(files, store, model, pipeline.WithObserver(obs))
	out, err := c.Extract(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "stored-name", readName)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.Equal(t, int64(1), out.Attempt)
	assert.Len(t, out.Transactions, 2)

	require.Len(t, model.requests, 1)
	assert.Equal(t, pipeline.BlockDocument, model.requests[0].Content.Kind)
	assert.Equal(t, "application/pdf", model.requests[0].Content.MediaType)
	assert.Equal(t, pipeline.ExtractionPrompt, model.requests[0].Instruction)

	got, err := store.GetFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.Len(t, got.Transactions, 2)
	assert.Equal(t, []domain.Status{domain.StatusCompleted}, obs.statuses)
}

func TestExtract_ImageBlock(t *testing.T) {
	store := inmemory.NewStore()
	id := register(t, store, "image/jpg")
	model := &MockModelClient{}

	out, err := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.Empty(t, out.Transactions)

	require.Len(t, model.requests, 1)
	assert.Equal(t, pipeline.BlockImage, model.requests[0].Content.Kind)
	assert.Equal(t, "image/jpeg", model.requests[0].Content.MediaType)
}

func TestExtract_UnsupportedNeverCallsModel(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "text/csv")
	files := &MockFileStore{ReadBytesFunc: func(ctx context.Context, filename string) ([]byte, error) {
		t.Fatal("file should not be read")
		return nil, nil
	}}
	model := &MockModelClient{}
	obs := &recordingObserver{}

	out, err := pipeline.NewCoordinator(files, store, model, pipeline.WithObserver(obs)).Extract(ctx, id)
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedInput)
	assert.False(t, pipeline.Retryable(err))
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusSkipped, out.Status)
	assert.Equal(t, "Unsupported file type: text/csv", out.Error)
	assert.Equal(t, 0, model.Calls())

	got, _ := store.GetFile(ctx, id)
	assert.Equal(t, domain.StatusSkipped, got.Status)
	assert.Equal(t, "Unsupported file type: text/csv", got.Error)
	assert.Equal(t, int64(0), got.Attempt)
	assert.Equal(t, []domain.Status{domain.StatusSkipped}, obs.statuses)
}

func TestExtract_TransportFailure(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "image/png")
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		return "", errors.New("503 Service Unavailable")
	}}

	out, err := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(ctx, id)
	assert.ErrorIs(t, err, pipeline.ErrTransport)
	assert.True(t, pipeline.Retryable(err))
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, "503 Service Unavailable", out.Error)

	got, _ := store.GetFile(ctx, id)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "503 Service Unavailable", got.Error)
	assert.Empty(t, got.Transactions)
}

func TestExtract_ParseFailure(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		return "Sorry, I cannot help with that.", nil
	}}

	out, err := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(ctx, id)
	assert.ErrorIs(t, err, pipeline.ErrMalformedOutput)
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, pipeline.ParseFailureMessage, out.Error)

	got, _ := store.GetFile(ctx, id)
	assert.Equal(t, "Failed to parse transaction data from document", got.Error)
}

func TestExtract_FileReadFailure(t *testing.T) {
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")
	files := &MockFileStore{ReadBytesFunc: func(ctx context.Context, filename string) ([]byte, error) {
		return nil, errors.New("open uploads/stored-name: no such file or directory")
	}}
	model := &MockModelClient{}

	out, err := pipeline.NewCoordinator(files, store, model).Extract(context.Background(), id)
	assert.ErrorIs(t, err, pipeline.ErrFileRead)
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, "open uploads/stored-name: no such file or directory", out.Error)
	assert.Equal(t, 0, model.Calls())
}

func TestExtract_LongErrorTruncated(t *testing.T) {
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		return "", errors.New(strings.Repeat("x", 5000))
	}}

	out, _ := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(context.Background(), id)
	require.NotNil(t, out)
	assert.Len(t, out.Error, 2000)
}

func TestExtract_LongErrorTruncatedOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")
	// The two-byte £ straddles the 2000 byte limit.
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		return "", errors.New(strings.Repeat("a", 1999) + "£ upstream error page")
	}}

	out, _ := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(ctx, id)
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.True(t, utf8.ValidString(out.Error))
	assert.Equal(t, strings.Repeat("a", 1999), out.Error)

	got, err := store.GetFile(ctx, id)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.Error))
}

func TestExtract_RetryLastWins(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	replies := []string{"not json", reply, `{"transactions": [{"date":"2024-02-01","description":"ONLY","amount":1,"type":"DEBIT"}]}`}
	model := &MockModelClient{}
	model.CompleteFunc = func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		return replies[model.Calls()-1], nil
	}
	c := pipeline.NewCoordinator(&MockFileStore{}, store, model)

	out, err := c.Extract(ctx, id)
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, out.Status)

	out, err = c.Extract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Attempt)
	assert.Len(t, out.Transactions, 2)

	// COMPLETED files may be re-extracted; the newer result replaces the old.
	out, err = c.Extract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Attempt)

	got, _ := store.GetFile(ctx, id)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "ONLY", got.Transactions[0].Description)
}

func TestExtract_SkippedThenReplacedFile(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/zip")
	c := pipeline.NewCoordinator(&MockFileStore{}, store, &MockModelClient{})

	_, err := c.Extract(ctx, id)
	require.ErrorIs(t, err, pipeline.ErrUnsupportedInput)

	// Plain retry of a SKIPPED file re-runs the MIME check and skips again.
	out, err := c.Extract(ctx, id)
	require.ErrorIs(t, err, pipeline.ErrUnsupportedInput)
	assert.Equal(t, domain.StatusSkipped, out.Status)
}

func TestExtract_NotFound(t *testing.T) {
	c := pipeline.NewCoordinator(&MockFileStore{}, inmemory.NewStore(), &MockModelClient{})
	out, err := c.Extract(context.Background(), "missing")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestExtract_ConcurrentSameFileRejected(t *testing.T) {
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	entered := make(chan struct{})
	release := make(chan struct{})
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		close(entered)
		<-release
		return reply, nil
	}}
	c := pipeline.NewCoordinator(&MockFileStore{}, store, model)

	done := make(chan error, 1)
	go func() {
		_, err := c.Extract(context.Background(), id)
		done <- err
	}()
	<-entered

	out, err := c.Extract(context.Background(), id)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, pipeline.ErrExtractionInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, model.Calls())
}

func TestExtract_ProcessingRecordBlocksUntilStale(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	started := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err := store.MarkProcessing(ctx, id, started)
	require.NoError(t, err)

	clock := started.Add(5 * time.Minute)
	model := &MockModelClient{}
	c := pipeline.NewCoordinator(&MockFileStore{}, store, model,
		pipeline.WithStaleAfter(10*time.Minute),
		pipeline.WithClock(func() time.Time { return clock }),
	)

	_, err = c.Extract(ctx, id)
	assert.ErrorIs(t, err, pipeline.ErrExtractionInProgress)
	assert.Equal(t, 0, model.Calls())

	clock = started.Add(11 * time.Minute)
	out, err := c.Extract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.Equal(t, int64(2), out.Attempt)
}

func TestExtract_SupersededAttemptDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		// Another worker starts a newer attempt while this call is in flight.
		_, err := store.MarkProcessing(ctx, id, time.Now())
		require.NoError(t, err)
		return reply, nil
	}}

	out, err := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(ctx, id)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrStaleAttempt)

	got, _ := store.GetFile(ctx, id)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Equal(t, int64(2), got.Attempt)
}

func TestExtract_LostProcessingClaimIsStale(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	// Another process claimed the attempt between our read and our update.
	records := &failingRecords{Store: store, MarkProcessingErr: fmt.Errorf("MarkProcessing: %s attempt 1 already claimed: %w", id, domain.ErrStaleAttempt)}
	model := &MockModelClient{}

	out, err := pipeline.NewCoordinator(&MockFileStore{}, records, model).Extract(ctx, id)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrStaleAttempt)
	assert.NotErrorIs(t, err, pipeline.ErrPersistence)
	assert.Equal(t, 0, model.Calls())
}

func TestExtract_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	records := &failingRecords{Store: store, MarkProcessingErr: errors.New("connection reset")}
	model := &MockModelClient{}
	out, err := pipeline.NewCoordinator(&MockFileStore{}, records, model).Extract(ctx, id)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, pipeline.ErrPersistence)
	assert.Equal(t, 0, model.Calls())

	records = &failingRecords{Store: store, MarkCompletedErr: errors.New("quota exceeded")}
	out, err = pipeline.NewCoordinator(&MockFileStore{}, records, model).Extract(ctx, id)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, pipeline.ErrPersistence)
	assert.True(t, pipeline.Retryable(err))
}

func TestExtract_CancelledContextStillRecordsFailure(t *testing.T) {
	store := inmemory.NewStore()
	id := register(t, store, "application/pdf")

	ctx, cancel := context.WithCancel(context.Background())
	model := &MockModelClient{CompleteFunc: func(ctx context.Context, req pipeline.ModelRequest) (string, error) {
		cancel()
		return "", ctx.Err()
	}}

	out, err := pipeline.NewCoordinator(&MockFileStore{}, store, model).Extract(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, "context canceled", out.Error)

	got, _ := store.GetFile(context.Background(), id)
	assert.Equal(t, domain.StatusFailed, got.Status)
}
