package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-review/internal/app"
	"github.com/dvloznov/statement-review/internal/config"
	"github.com/dvloznov/statement-review/internal/jobs"
	"github.com/dvloznov/statement-review/internal/jobs/inmemory"
	"github.com/dvloznov/statement-review/internal/logger"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("STATEMENT_REVIEW_CONFIG"), "Path to YAML config file (or set STATEMENT_REVIEW_CONFIG env)")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.NewFromConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	// The worker only sees files registered by other processes through a
	// shared record store.
	if cfg.Records.Driver == config.RecordsMemory {
		log.Fatal().Msg("Worker needs a shared record store; set records.driver to bigquery or postgres")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, jobStore,
		inmemory.WithWorkers(cfg.Jobs.Workers),
		inmemory.WithMaxRetries(cfg.Jobs.MaxRetries),
	)

	log.Info().
		Int("workers", cfg.Jobs.Workers).
		Str("records_driver", cfg.Records.Driver).
		Dur("sweep_interval", cfg.Jobs.SweepInterval).
		Msg("Starting worker service")

	if err := jobQueue.Start(ctx, jobs.NewExtractHandler(a.Coordinator, cfg.Model.Timeout)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, a.Metrics.Handler())
		go func() {
			log.Info().Str("addr", *metricsAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()

	sweeper := jobs.NewSweeper(a.Records, jobQueue, jobStore, cfg.Jobs.BufferSize)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx, cfg.Jobs.SweepInterval)
	}()

	log.Info().Msg("Worker service started, waiting for pending files...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Stop sweeping before the queue closes so no job is published late.
	cancelSweep()
	<-sweepDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}
