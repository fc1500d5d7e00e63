// Command showtimes assigns operating hours to every stored theater and
// schedules screenings of recently released movies across the configured
// number of days.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/movie-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/movie-data-etl/internal/config"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
	"github.com/couchcryptid/movie-data-etl/internal/showtime"
)

func main() {
	seed := flag.Uint64("seed", 0, "random seed for repeatable schedules (0 picks one)")
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

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	}

	err = run(ctx, cfg, logger, metrics, rng)
	switch {
	case errors.Is(err, showtime.ErrNoTheaters):
		logger.Warn("nothing to schedule, run the theaters command first", "error", err)
	case errors.Is(err, showtime.ErrNoMovies):
		logger.Warn("nothing to schedule, run the movies command first", "error", err)
	case err != nil:
		logger.Error("showtime generation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, rng *rand.Rand) error {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	gen, err := showtime.NewGenerator(rules.Showtimes, rng)
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

	stats, err := showtime.Run(ctx, gen, store, logger)
	if err != nil {
		return err
	}
	logger.Info("showtime summary",
		"theaters", stats.TheatersProcessed,
		"movies", stats.MoviesScheduled,
		"showtimes", stats.ShowtimesGenerated,
		"replaced", stats.ShowtimesCleared,
		"duration", stats.End.Sub(stats.Start),
	)
	return nil
}
