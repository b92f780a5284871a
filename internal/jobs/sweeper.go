package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
)

// DefaultSweepBatch caps how many PENDING files one sweep picks up.
const DefaultSweepBatch = 100

// FileLister is the part of the record store a Sweeper reads.
type FileLister interface {
	ListFiles(ctx context.Context, filter domain.FileFilter) ([]*domain.File, error)
}

// Sweeper finds PENDING files in a shared record store and publishes an
// extraction job for each one that has no open job yet. It lets a worker
// process pick up files registered by other processes.
type Sweeper struct {
	files     FileLister
	publisher Publisher
	store     JobStore
	batch     int
}

// NewSweeper creates a Sweeper. A non-positive batch uses DefaultSweepBatch.
func NewSweeper(files FileLister, publisher Publisher, store JobStore, batch int) *Sweeper {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{files: files, publisher: publisher, store: store, batch: batch}
}

// Sweep publishes jobs for PENDING files and returns how many it published.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	pending := domain.StatusPending
	files, err := s.files.ListFiles(ctx, domain.FileFilter{Status: &pending, Limit: s.batch})
	if err != nil {
		return 0, fmt.Errorf("Sweep: listing pending files: %w", err)
	}

	published := 0
	for _, f := range files {
		open, err := s.hasOpenJob(ctx, f.ID)
		if err != nil {
			return published, fmt.Errorf("Sweep: %w", err)
		}
		if open {
			continue
		}

		job := &ExtractJob{FileID: f.ID}
		if err := s.publisher.PublishExtract(ctx, job); err != nil {
			return published, fmt.Errorf("Sweep: publishing %s: %w", f.ID, err)
		}
		log.Info().
			Str("job_id", job.JobID).
			Str("file_id", f.ID).
			Msg("Queued pending file")
		published++
	}
	return published, nil
}

func (s *Sweeper) hasOpenJob(ctx context.Context, fileID string) (bool, error) {
	existing, err := s.store.ListJobs(ctx, JobFilter{FileID: fileID})
	if err != nil {
		return false, fmt.Errorf("listing jobs for %s: %w", fileID, err)
	}
	for _, j := range existing {
		switch j.Status {
		case JobStatusPending, JobStatusRunning, JobStatusRetrying:
			return true, nil
		}
	}
	return false, nil
}

// Run sweeps immediately and then every interval until ctx is done.
// Sweep errors are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
		} else if n > 0 {
			log.Info().Int("published", n).Msg("Sweep finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
