// Package censusfeed downloads the Census Bureau gazetteer archive and the
// sub-county population estimates.
package censusfeed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/couchcryptid/movie-data-etl/internal/download"
)

// Sources are the remote file locations.
type Sources struct {
	GazetteerURL  string
	PopulationURL string
}

// Files are the local copies of Sources.
type Files struct {
	Gazetteer  string
	Population string
}

// Feed fetches census source files into a cache directory.
type Feed struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Feed. The timeout covers each whole download.
func New(timeout time.Duration, logger *slog.Logger) *Feed {
	return &Feed{client: &http.Client{Timeout: timeout}, logger: logger}
}

// Fetch downloads both files into dir, named after the last URL path segment.
// Files already present are reused unless refresh is set.
func (f *Feed) Fetch(ctx context.Context, src Sources, dir string, refresh bool) (Files, error) {
	gaz, err := f.fetch(ctx, src.GazetteerURL, dir, refresh)
	if err != nil {
		return Files{}, fmt.Errorf("gazetteer: %w", err)
	}
	pop, err := f.fetch(ctx, src.PopulationURL, dir, refresh)
	if err != nil {
		return Files{}, fmt.Errorf("population: %w", err)
	}
	return Files{Gazetteer: gaz, Population: pop}, nil
}

func (f *Feed) fetch(ctx context.Context, url, dir string, refresh bool) (string, error) {
	name := path.Base(url)
	if name == "." || name == "/" {
		return "", fmt.Errorf("no file name in %q", url)
	}
	dest := filepath.Join(dir, name)

	if !refresh {
		info, err := os.Stat(dest)
		switch {
		case err == nil && info.Size() > 0:
			f.logger.Info("using cached census file", "path", dest, "bytes", info.Size())
			return dest, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("stat %s: %w", dest, err)
		}
	}

	start := time.Now()
	n, err := download.ToFile(ctx, f.client, url, dest)
	if err != nil {
		return "", err
	}
	f.logger.Info("downloaded census file", "url", url, "path", dest, "bytes", n, "duration", time.Since(start))
	return dest, nil
}
