// Command movies pulls popular titles from the TMDB catalog, stores them with
// their people and genres, optionally downloads poster and backdrop images,
// and exports the collection as JSON and CSV.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/movie-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/movie-data-etl/internal/adapter/tmdb"
	"github.com/couchcryptid/movie-data-etl/internal/config"
	"github.com/couchcryptid/movie-data-etl/internal/export"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
	"github.com/couchcryptid/movie-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireCatalog(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("movie fetch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
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

	client := tmdb.NewClient(tmdb.Options{
		APIKey:        cfg.TMDBAPIKey,
		BaseURL:       cfg.TMDBBaseURL,
		Language:      rules.Movies.Language,
		Timeout:       cfg.TMDBTimeout,
		RatePerSecond: cfg.TMDBRateLimit,
	}, logger, metrics)
	catalog := tmdb.NewCachedCatalog(client, cfg.TMDBCacheSize, metrics)

	fetchCfg := pipeline.FetchConfig{
		Query:        rules.Movies.Query(),
		Count:        rules.Movies.Count,
		MaxPages:     rules.Movies.MaxPages,
		PageDelay:    rules.Movies.PageDelay,
		RetryDelay:   rules.Movies.RetryDelay,
		MaxRetries:   rules.Movies.MaxRetries,
		ImageBaseURL: cfg.TMDBImageBaseURL,
	}
	var images pipeline.ImageFetcher
	if rules.Movies.DownloadImages {
		fetchCfg.ImageDir = filepath.Join(cfg.OutputDir, "images")
		images = tmdb.NewImageDownloader(cfg.TMDBTimeout, logger, metrics)
	}

	stats, runErr := pipeline.NewMovieFetcher(catalog, store, images, fetchCfg, logger).Run(ctx)
	logger.Info("movie fetch summary",
		"requested", stats.Requested,
		"fetched", stats.Fetched,
		"saved", stats.Saved,
		"with_images", stats.WithImages,
		"errors", stats.Errors,
		"pages", stats.Pages,
		"genres", len(stats.Genres),
		"duration", stats.End.Sub(stats.Start),
	)
	if runErr != nil {
		return runErr
	}

	movies, err := store.AllMovies(context.Background())
	if err != nil {
		return err
	}
	if err := export.WriteJSON(filepath.Join(cfg.OutputDir, export.MoviesFile), movies, cfg.PrettyJSON); err != nil {
		return err
	}
	return export.WriteMoviesCSV(filepath.Join(cfg.OutputDir, export.MoviesCSVFile), movies, rules.Movies.DownloadImages)
}
