// Command report prints document counts, the most populous cities and the
// latest batch progress of the record store.
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

	"github.com/couchcryptid/movie-data-etl/internal/adapter/mongo"
	"github.com/couchcryptid/movie-data-etl/internal/config"
	"github.com/couchcryptid/movie-data-etl/internal/export"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

var collections = []string{
	mongo.Cities, mongo.Theaters, mongo.Movies, mongo.Actors, mongo.Directors,
	mongo.Genres, mongo.Showtimes, mongo.OperationalHours, mongo.Progress,
}

func main() {
	top := flag.Int("top", 10, "number of most populous cities to list")
	asJSON := flag.Bool("json", false, "also write the report to the output directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *top, *asJSON); err != nil {
		logger.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, top int, asJSON bool) error {
	store, err := mongo.Connect(ctx, mongo.Options{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
		Timeout:  cfg.MongoTimeout,
	}, logger, observability.NewMetrics())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.MaskURI(cfg.MongoURI), err)
	}
	defer store.Close(context.Background())

	report, err := export.BuildReport(ctx, store, collections, top)
	if err != nil {
		return err
	}
	if err := report.Render(os.Stdout, collections); err != nil {
		return err
	}
	if asJSON {
		path := filepath.Join(cfg.OutputDir, export.ReportFile)
		if err := export.WriteJSON(path, report, cfg.PrettyJSON); err != nil {
			return err
		}
		logger.Info("report written", "path", path)
	}
	return nil
}
