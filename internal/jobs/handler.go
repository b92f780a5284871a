package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
	"github.com/dvloznov/statement-review/internal/pipeline"
)

// Extractor runs one extraction of a file.
type Extractor interface {
	Extract(ctx context.Context, fileID string) (*pipeline.Outcome, error)
}

// NewExtractHandler returns a JobHandler that runs ExtractJobs through the
// extractor. Each attempt is bounded by timeout when it is positive.
func NewExtractHandler(extractor Extractor, timeout time.Duration) JobHandler {
	return func(ctx context.Context, job Job) error {
		extractJob, ok := job.(*ExtractJob)
		if !ok {
			return Permanent(fmt.Errorf("unsupported job type: %s", job.GetType()))
		}

		log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
			"job_id":  extractJob.JobID,
			"file_id": extractJob.FileID,
		})
		ctx = logger.WithContext(ctx, log)

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		outcome, err := extractor.Extract(ctx, extractJob.FileID)
		if err != nil {
			log.Error().Err(err).Msg("Extraction job failed")
			if isPermanentExtractionError(err) {
				return Permanent(err)
			}
			return err
		}

		log.Info().
			Str("status", outcome.Status.String()).
			Int("transaction_count", len(outcome.Transactions)).
			Msg("Extraction job finished")
		return nil
	}
}

// isPermanentExtractionError reports errors a retry of the same job cannot
// fix: the file is unsupported or gone, another extraction owns it, or a
// newer attempt superseded this one.
func isPermanentExtractionError(err error) bool {
	return errors.Is(err, pipeline.ErrUnsupportedInput) ||
		errors.Is(err, pipeline.ErrExtractionInProgress) ||
		errors.Is(err, domain.ErrFileNotFound) ||
		errors.Is(err, domain.ErrStaleAttempt)
}
