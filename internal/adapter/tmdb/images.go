package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/download"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

// ImageDownloader saves movie posters and backdrops.
type ImageDownloader struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewImageDownloader creates an ImageDownloader.
func NewImageDownloader(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ImageDownloader {
	return &ImageDownloader{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Download fetches the movie's poster into <dir>/posters and its backdrop into
// <dir>/backdrops. A failed image is logged and skipped; the other is still tried.
func (d *ImageDownloader) Download(ctx context.Context, m domain.Movie, dir string) domain.ImagePaths {
	var out domain.ImagePaths
	if m.PosterURL != "" {
		out.Poster = d.fetch(ctx, m, m.PosterURL, PosterPath(dir, m))
	}
	if m.BackdropURL != "" {
		out.Backdrop = d.fetch(ctx, m, m.BackdropURL, BackdropPath(dir, m))
	}
	return out
}

func (d *ImageDownloader) fetch(ctx context.Context, m domain.Movie, url, path string) string {
	start := time.Now()
	_, err := download.ToFile(ctx, d.httpClient, url, path)
	d.metrics.CatalogAPIDuration.WithLabelValues(endpointImage).Observe(time.Since(start).Seconds())
	d.metrics.CatalogRequests.WithLabelValues(endpointImage, outcome(err)).Inc()
	if err != nil {
		d.logger.Warn("image download failed", "movie", m.ID, "title", m.Title, "url", url, "error", err)
		return ""
	}
	d.logger.Debug("image downloaded", "movie", m.ID, "path", path)
	return path
}

// PosterPath is <dir>/posters/<id>_<title>_poster.jpg.
func PosterPath(dir string, m domain.Movie) string {
	return filepath.Join(dir, "posters", fmt.Sprintf("%d_%s_poster.jpg", m.ID, fileTitle(m.Title)))
}

// BackdropPath is <dir>/backdrops/<id>_<title>_backdrop.jpg.
func BackdropPath(dir string, m domain.Movie) string {
	return filepath.Join(dir, "backdrops", fmt.Sprintf("%d_%s_backdrop.jpg", m.ID, fileTitle(m.Title)))
}

// fileTitle replaces spaces and path separators with underscores.
func fileTitle(title string) string {
	return strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(title)
}
