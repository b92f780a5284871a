// Package app builds the service components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-review/internal/config"
	"github.com/dvloznov/statement-review/internal/docmodel"
	"github.com/dvloznov/statement-review/internal/filestore"
	"github.com/dvloznov/statement-review/internal/logger"
	"github.com/dvloznov/statement-review/internal/metrics"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/dvloznov/statement-review/internal/records"
	bqrecords "github.com/dvloznov/statement-review/internal/records/bigquery"
	"github.com/dvloznov/statement-review/internal/records/inmemory"
	"github.com/dvloznov/statement-review/internal/records/postgres"
	"github.com/dvloznov/statement-review/internal/review"
	"github.com/rs/zerolog"
)

// App holds the wired components shared by the API server and the CLI.
type App struct {
	Config      *config.Config
	Log         zerolog.Logger
	Files       filestore.Store
	Records     records.Store
	Model       pipeline.DocumentModelClient
	Metrics     *metrics.Collector
	Coordinator *pipeline.Coordinator
	Review      *review.Service
}

// OpenFiles creates the configured file store.
func OpenFiles(ctx context.Context, cfg config.FilesConfig) (filestore.Store, error) {
	switch cfg.Driver {
	case config.FilesLocal:
		store, err := filestore.NewLocal(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("OpenFiles: %w", err)
		}
		return store, nil
	case config.FilesGCS:
		store, err := filestore.NewGCS(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("OpenFiles: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("OpenFiles: unknown driver %q", cfg.Driver)
	}
}

// OpenRecords creates the configured record store. Schemas are not touched;
// see Migrate.
func OpenRecords(ctx context.Context, cfg config.RecordsConfig) (records.Store, error) {
	switch cfg.Driver {
	case config.RecordsMemory:
		return inmemory.NewStore(), nil
	case config.RecordsBigQuery:
		store, err := bqrecords.NewStore(ctx, cfg.ProjectID, cfg.Dataset, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("OpenRecords: %w", err)
		}
		return store, nil
	case config.RecordsPostgres:
		store, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("OpenRecords: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("OpenRecords: unknown driver %q", cfg.Driver)
	}
}

// Migrate brings the record store schema up to date. The in-memory store
// needs nothing.
func Migrate(ctx context.Context, store records.Store, appliedBy string) error {
	log := logger.FromContext(ctx)

	switch s := store.(type) {
	case *bqrecords.Store:
		n, err := bqrecords.Migrate(ctx, s.Client(), s.Table(), appliedBy)
		if err != nil {
			return fmt.Errorf("Migrate: %w", err)
		}
		log.Info().Int("applied", n).Msg("BigQuery migrations applied")
	case *postgres.Store:
		if err := s.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("Migrate: %w", err)
		}
		log.Info().Msg("Postgres schema ensured")
	}
	return nil
}

// OpenModel creates the configured document model client.
func OpenModel(ctx context.Context, cfg config.ModelConfig) (pipeline.DocumentModelClient, error) {
	return docmodel.New(ctx, docmodel.Options{
		Provider:        cfg.Provider,
		Model:           cfg.Name,
		APIKey:          cfg.APIKey,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
}

// New wires every component. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	var err error
	if a.Files, err = OpenFiles(ctx, cfg.Files); err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	if a.Records, err = OpenRecords(ctx, cfg.Records); err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	if a.Model, err = OpenModel(ctx, cfg.Model); err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	a.Metrics = metrics.NewCollector()
	a.Coordinator = pipeline.NewCoordinator(a.Files, a.Records, a.Model,
		pipeline.WithObserver(a.Metrics),
		pipeline.WithStaleAfter(cfg.Extraction.StaleAfter),
	)

	a.Review, err = review.NewService(a.Records, nil,
		review.WithCacheSize(cfg.Review.CacheSize),
		review.WithObserver(a.Metrics),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	return a, nil
}

// Close releases every opened component.
func (a *App) Close() error {
	var errs []error
	if a.Review != nil {
		a.Review.Close()
	}
	if a.Records != nil {
		errs = append(errs, a.Records.Close())
	}
	if a.Files != nil {
		errs = append(errs, a.Files.Close())
	}
	return errors.Join(errs...)
}
