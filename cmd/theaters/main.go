// Command theaters drives the batch loop over pending places, synthesizing
// theaters for each one. Progress is stored with every place, so an
// interrupted run resumes where it stopped. Health, readiness and metrics are
// served while it works.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/movie-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/movie-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/movie-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/movie-data-etl/internal/config"
	"github.com/couchcryptid/movie-data-etl/internal/export"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
	"github.com/couchcryptid/movie-data-etl/internal/pipeline"
	"github.com/couchcryptid/movie-data-etl/internal/theater"
)

func main() {
	reset := flag.Bool("reset", false, "clear the processed flag on every place before running")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics, *reset); err != nil {
		logger.Error("theater run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, reset bool) error {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	store, err := mongo.Connect(ctx, mongo.Options{
		URI:       cfg.MongoURI,
		Database:  cfg.MongoDatabase,
		Timeout:   cfg.MongoTimeout,
		BatchSize: cfg.BatchSize,
		Policy:    cfg.ErrorPolicy,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.MaskURI(cfg.MongoURI), err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}
	if reset {
		n, err := store.ResetProgress(ctx)
		if err != nil {
			return err
		}
		logger.Info("progress reset", "places", n)
	}

	pending, err := store.CountPending(ctx)
	if err != nil {
		return err
	}
	logger.Info("places awaiting theaters", "pending", pending, "selection", cfg.CitySelection)

	source := pipeline.PendingFunc(store.PendingPlaces)
	if cfg.CitySelection == config.SelectRandom {
		source = store.SamplePendingPlaces
	}

	worker := theater.NewWorker(theater.NewGenerator(rules.Theaters, nil, logger), store, logger, metrics)
	var opts []pipeline.Option
	if cfg.ProgressEventsEnabled() {
		writer := kafkaadapter.NewProgressWriter(cfg.KafkaBrokers, cfg.KafkaProgressTopic, logger, metrics)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(writer))
	}

	driver := pipeline.NewDriver(source, worker, store, pipeline.Config{
		BatchSize:    cfg.CityBatchSize,
		DelayMin:     cfg.DelayMin,
		DelayMax:     cfg.DelayMax,
		BatchDelay:   cfg.BatchDelay,
		BatchTimeout: cfg.BatchTimeout,
		MaxBatches:   cfg.MaxBatches,
		MaxItems:     cfg.MaxItems,
		Policy:       cfg.ErrorPolicy,
	}, logger, metrics, opts...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, logger, store, driver).WithProgress(store)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}()

	summary, runErr := driver.Run(ctx)
	logger.Info("theater run summary",
		"run_id", summary.RunID,
		"batches", summary.Batches,
		"processed", summary.Processed,
		"theaters", summary.Found,
		"errors", summary.Errors,
		"stop_reason", summary.StopReason,
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	// Export with a fresh context so an interrupted run still leaves a snapshot.
	theaters, err := store.AllTheaters(context.Background())
	if err != nil {
		return err
	}
	return export.WriteJSON(filepath.Join(cfg.OutputDir, export.TheatersFile), theaters, cfg.PrettyJSON)
}
