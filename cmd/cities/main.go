// Command cities builds the place collection: it downloads the Census Bureau
// gazetteer and population estimates, merges them and upserts the result into
// the cities collection. Processing progress of places already stored is kept.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/couchcryptid/movie-data-etl/internal/adapter/censusfeed"
	"github.com/couchcryptid/movie-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/movie-data-etl/internal/census"
	"github.com/couchcryptid/movie-data-etl/internal/config"
	"github.com/couchcryptid/movie-data-etl/internal/export"
	"github.com/couchcryptid/movie-data-etl/internal/gazetteer"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

func main() {
	gazPath := flag.String("gazetteer", "", "local gazetteer zip; skips the download")
	popPath := flag.String("population", "", "local population CSV; skips the download")
	refresh := flag.Bool("refresh", false, "download source files even when cached")
	noStore := flag.Bool("dry-run", false, "merge and export without writing to MongoDB")
	timeout := flag.Duration("download-timeout", 10*time.Minute, "limit for each census download")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, options{gazPath: *gazPath, popPath: *popPath, refresh: *refresh, dryRun: *noStore, timeout: *timeout}); err != nil {
		logger.Error("cities import failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	gazPath, popPath string
	refresh, dryRun  bool
	timeout          time.Duration
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts options) error {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	gazPath, popPath := opts.gazPath, opts.popPath
	if gazPath == "" || popPath == "" {
		feed := censusfeed.New(opts.timeout, logger)
		files, err := feed.Fetch(ctx, censusfeed.Sources{
			GazetteerURL:  rules.Census.GazetteerURL,
			PopulationURL: rules.Census.PopulationURL,
		}, filepath.Join(cfg.OutputDir, "census"), opts.refresh)
		if err != nil {
			return fmt.Errorf("fetch census files: %w", err)
		}
		if gazPath == "" {
			gazPath = files.Gazetteer
		}
		if popPath == "" {
			popPath = files.Population
		}
	}

	places, loadStats, err := gazetteer.LoadArchive(gazPath, logger)
	if err != nil {
		return err
	}
	logger.Info("gazetteer loaded",
		"places", places.Len(),
		"short_rows", loadStats.ShortRows,
		"bad_coordinates", loadStats.BadCoordinates,
	)

	pop, err := os.Open(popPath)
	if err != nil {
		return fmt.Errorf("open population file: %w", err)
	}
	defer pop.Close()

	res, err := census.Merge(places, pop, rules.Census.PopulationColumn, logger)
	if err != nil {
		return err
	}
	for _, c := range res.MajorCities {
		logger.Info("major city", "name", c.Name, "found", c.Found, "population", c.Population, "backfilled", c.BackFilled)
	}

	if err := export.WriteJSON(filepath.Join(cfg.OutputDir, export.CitiesFile), places.Places(), cfg.PrettyJSON); err != nil {
		return err
	}
	if opts.dryRun {
		logger.Info("dry run, skipping store", "places", places.Len(), "with_population", places.WithPopulation())
		return nil
	}

	store, err := mongo.Connect(ctx, mongo.Options{
		URI:       cfg.MongoURI,
		Database:  cfg.MongoDatabase,
		Timeout:   cfg.MongoTimeout,
		BatchSize: cfg.BatchSize,
		Policy:    cfg.ErrorPolicy,
	}, logger, observability.NewMetrics())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.MaskURI(cfg.MongoURI), err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}
	written, err := store.UpsertPlaces(ctx, places.Places())
	if err != nil {
		return err
	}

	logger.Info("cities import finished",
		"places", places.Len(),
		"with_population", places.WithPopulation(),
		"attached", res.Attached,
		"synthesized", res.Synthesized,
		"suppressed", res.Suppressed,
		"written", written,
	)
	return nil
}
