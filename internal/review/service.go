// Package review runs the check battery over extracted statements and
// caches the resulting reports.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/dvloznov/statement-review/internal/checks"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
)

// ErrNotCompleted is returned when a report is requested for a file whose
// extraction has not completed.
var ErrNotCompleted = errors.New("file extraction not completed")

// DefaultCacheSize is the number of reports kept when no size is configured.
const DefaultCacheSize = 1000

// FileGetter loads file records.
type FileGetter interface {
	GetFile(ctx context.Context, fileID string) (*domain.File, error)
}

// ResultObserver receives every freshly computed set of check results.
type ResultObserver interface {
	ObserveChecks(results []checks.Result)
}

// Report is the outcome of running the checks over one transaction list.
type Report struct {
	FileID           string          `json:"file_id,omitempty"`
	Status           domain.Status   `json:"status"`
	Attempt          int64           `json:"attempt,omitempty"`
	TransactionCount int             `json:"transaction_count"`
	Results          []checks.Result `json:"results"`
	FailedCount      int             `json:"failed_count"`
	HasErrors        bool            `json:"has_errors"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

func newReport(results []checks.Result, txCount int, now time.Time) *Report {
	failed := checks.Failed(results)
	hasErrors := false
	for _, r := range failed {
		if r.Severity == checks.SeverityError {
			hasErrors = true
			break
		}
	}
	return &Report{
		Status:           domain.StatusCompleted,
		TransactionCount: txCount,
		Results:          results,
		FailedCount:      len(failed),
		HasErrors:        hasErrors,
		GeneratedAt:      now,
	}
}

func (r *Report) clone() *Report {
	c := *r
	c.Results = make([]checks.Result, len(r.Results))
	copy(c.Results, r.Results)
	return &c
}

// CheckInfo describes one registered check.
type CheckInfo struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Severity checks.Severity `json:"severity"`
}

// Service evaluates files against a check runner.
type Service struct {
	files    FileGetter
	runner   *checks.Runner
	cache    *ristretto.Cache
	observer ResultObserver
	now      func() time.Time
}

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	cacheSize int64
	observer  ResultObserver
}

// WithCacheSize bounds the number of cached reports.
func WithCacheSize(n int) Option {
	return func(c *serviceConfig) {
		if n > 0 {
			c.cacheSize = int64(n)
		}
	}
}

// WithObserver reports freshly computed results to o.
func WithObserver(o ResultObserver) Option {
	return func(c *serviceConfig) { c.observer = o }
}

// NewService creates a review service. A nil runner uses checks.DefaultRunner.
func NewService(files FileGetter, runner *checks.Runner, opts ...Option) (*Service, error) {
	cfg := serviceConfig{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if runner == nil {
		runner = checks.DefaultRunner()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.cacheSize * 10, // number of keys to track frequency of
		MaxCost:     cfg.cacheSize,
		BufferItems: 64, // number of keys per Get buffer

		// Each report costs 1, so MaxCost counts reports. Without this
		// ristretto adds its per-entry overhead to every cost.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("NewService: creating cache: %w", err)
	}

	return &Service{
		files:    files,
		runner:   runner,
		cache:    cache,
		observer: cfg.observer,
		now:      time.Now,
	}, nil
}

// Close releases the cache.
func (s *Service) Close() {
	s.cache.Close()
}

// Checks lists the registered checks in reporting order.
func (s *Service) Checks() []CheckInfo {
	registered := s.runner.Checks()
	out := make([]CheckInfo, len(registered))
	for i, c := range registered {
		out[i] = CheckInfo{ID: c.ID(), Name: c.Name(), Severity: c.Severity()}
	}
	return out
}

func cacheKey(fileID string, attempt int64) string {
	return fmt.Sprintf("%s:%d", fileID, attempt)
}

// Evaluate runs the checks over a COMPLETED file's transactions. Reports are
// cached per extraction attempt, so a re-extraction is evaluated afresh.
func (s *Service) Evaluate(ctx context.Context, fileID string) (*Report, error) {
	log := logger.FromContext(ctx)

	f, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("Evaluate: %w", err)
	}
	if f.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("Evaluate: file %s is %s: %w", fileID, f.Status, ErrNotCompleted)
	}

	key := cacheKey(f.ID, f.Attempt)
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.(*Report); ok {
			log.Debug().Str("file_id", fileID).Int64("attempt", f.Attempt).Msg("Check report served from cache")
			return cached.clone(), nil
		}
	}

	report := s.evaluate(f.VisibleTransactions())
	report.FileID = f.ID
	report.Attempt = f.Attempt

	s.cache.Set(key, report.clone(), 1)
	s.cache.Wait()

	log.Info().
		Str("file_id", fileID).
		Int64("attempt", f.Attempt).
		Int("failed_count", report.FailedCount).
		Msg("Checks evaluated")

	return report, nil
}

// EvaluateTransactions runs the checks over an ad-hoc transaction list.
// Results are not cached.
func (s *Service) EvaluateTransactions(ctx context.Context, txs []domain.Transaction) *Report {
	return s.evaluate(txs)
}

func (s *Service) evaluate(txs []domain.Transaction) *Report {
	results := s.runner.RunAll(txs)
	if s.observer != nil {
		s.observer.ObserveChecks(results)
	}
	return newReport(results, len(txs), s.now())
}
