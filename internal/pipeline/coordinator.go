package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
)

// Outcome is the status an Extract call wrote.
type Outcome struct {
	FileID       string               `json:"file_id"`
	Status       domain.Status        `json:"status"`
	Attempt      int64                `json:"attempt,omitempty"`
	Error        string               `json:"error,omitempty"`
	Transactions []domain.Transaction `json:"transactions,omitempty"`
}

// Coordinator drives the extraction state machine of a file:
//
//	PENDING|FAILED|COMPLETED|SKIPPED -> SKIPPED            (unsupported MIME type)
//	PENDING|FAILED|COMPLETED|SKIPPED -> PROCESSING -> COMPLETED|FAILED
//
// Extractions of one file are serialized in-process; across processes the
// attempt number fences out stale terminal writes, so the last extraction to
// start wins.
type Coordinator struct {
	records    RecordStore
	pipeline   *Pipeline
	observer   Observer
	staleAfter time.Duration
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver reports every written outcome to o.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithStaleAfter sets how long a PROCESSING record blocks new extractions.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the collaborators into a Coordinator.
func NewCoordinator(files FileStore, records RecordStore, model DocumentModelClient, opts ...Option) *Coordinator {
	c := &Coordinator{
		records:    records,
		pipeline:   NewExtractionPipeline(files, model),
		observer:   nopObserver{},
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		inFlight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) acquire(fileID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[fileID]; busy {
		return false
	}
	c.inFlight[fileID] = struct{}{}
	return true
}

func (c *Coordinator) release(fileID string) {
	c.mu.Lock()
	delete(c.inFlight, fileID)
	c.mu.Unlock()
}

// Extract runs one extraction of the file. The returned Outcome is non-nil
// whenever a status was written; the error is non-nil for every outcome
// other than COMPLETED and wraps one of the package's failure classes.
//
// Extract sets no deadline of its own. Callers bound the model call through
// ctx; a cancelled ctx still records FAILED.
func (c *Coordinator) Extract(ctx context.Context, fileID string) (*Outcome, error) {
	if !c.acquire(fileID) {
		return nil, fmt.Errorf("Extract: file %s: %w", fileID, ErrExtractionInProgress)
	}
	defer c.release(fileID)

	log := logger.FromContext(ctx).With().Str("file_id", fileID).Logger()
	ctx = logger.WithContext(ctx, log)

	file, err := c.records.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("Extract: loading file %s: %w", fileID, err)
	}

	start := c.now()
	if !file.Status.Extractable() {
		if file.ProcessingStartedAt != nil && start.Sub(*file.ProcessingStartedAt) < c.staleAfter {
			return nil, fmt.Errorf("Extract: file %s: %w", fileID, ErrExtractionInProgress)
		}
		log.Warn().
			Int64("attempt", file.Attempt).
			Msg("Taking over stale extraction")
	}

	if !SupportedMIME(file.MimeType) {
		reason := "Unsupported file type: " + file.MimeType
		log.Info().Str("mime_type", file.MimeType).Msg("Skipping unsupported file type")
		if err := c.records.MarkSkipped(ctx, fileID, reason); err != nil {
			return nil, fmt.Errorf("Extract: marking %s skipped: %v: %w", fileID, err, ErrPersistence)
		}
		c.observer.ObserveExtraction(domain.StatusSkipped, file.MimeType, c.now().Sub(start))
		return &Outcome{FileID: fileID, Status: domain.StatusSkipped, Error: reason},
			fmt.Errorf("Extract: %s: %w", reason, ErrUnsupportedInput)
	}

	attempt, err := c.records.MarkProcessing(ctx, fileID, start)
	if err != nil {
		return nil, c.terminalWriteError(fileID, "processing", err)
	}
	log = log.With().Int64("attempt", attempt).Logger()
	ctx = logger.WithContext(ctx, log)
	log.Info().
		Str("status", domain.StatusProcessing.String()).
		Str("mime_type", file.MimeType).
		Msg("Extraction started")

	state := &PipelineState{File: file}
	runErr := c.pipeline.Execute(ctx, state)

	// Terminal writes must land even when the caller gave up waiting.
	writeCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		reason := truncate(failureReason(runErr), maxErrorLen)
		log.Error().
			Err(runErr).
			Str("status", domain.StatusFailed.String()).
			Msg("Extraction failed")
		if err := c.records.MarkFailed(writeCtx, fileID, attempt, reason); err != nil {
			return nil, c.terminalWriteError(fileID, "failed", err)
		}
		c.observer.ObserveExtraction(domain.StatusFailed, file.MimeType, c.now().Sub(start))
		return &Outcome{FileID: fileID, Status: domain.StatusFailed, Attempt: attempt, Error: reason},
			fmt.Errorf("Extract: %w", runErr)
	}

	if err := c.records.MarkCompleted(writeCtx, fileID, attempt, state.Transactions); err != nil {
		return nil, c.terminalWriteError(fileID, "completed", err)
	}
	log.Info().
		Str("status", domain.StatusCompleted.String()).
		Int("transactions", len(state.Transactions)).
		Msg("Extraction completed")
	c.observer.ObserveExtraction(domain.StatusCompleted, file.MimeType, c.now().Sub(start))

	return &Outcome{
		FileID:       fileID,
		Status:       domain.StatusCompleted,
		Attempt:      attempt,
		Transactions: state.Transactions,
	}, nil
}

func (c *Coordinator) terminalWriteError(fileID, status string, err error) error {
	if errors.Is(err, domain.ErrStaleAttempt) {
		return fmt.Errorf("Extract: marking %s %s: %w", fileID, status, err)
	}
	return fmt.Errorf("Extract: marking %s %s: %v: %w", fileID, status, err, ErrPersistence)
}

// failureReason is the message stored on a FAILED file.
func failureReason(err error) string {
	if errors.Is(err, ErrMalformedOutput) {
		return ParseFailureMessage
	}
	var ce *causeError
	if errors.As(err, &ce) {
		return ce.err.Error()
	}
	return err.Error()
}
