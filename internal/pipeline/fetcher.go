package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// MovieSink stores a normalized movie and its supporting records.
type MovieSink interface {
	SaveMovie(ctx context.Context, m domain.Movie) error
}

// ImageFetcher saves a movie's artwork under dir.
type ImageFetcher interface {
	Download(ctx context.Context, m domain.Movie, dir string) domain.ImagePaths
}

// FetchConfig controls a movie fetch run.
type FetchConfig struct {
	Query        domain.DiscoverQuery
	Count        int
	MaxPages     int
	PageDelay    time.Duration
	RetryDelay   time.Duration
	MaxRetries   int // consecutive failures of one page before giving up
	ImageBaseURL string
	ImageDir     string // empty disables image download
}

// MovieStats summarize a fetch run.
type MovieStats struct {
	Requested  int       `json:"requested"`
	Fetched    int       `json:"fetched"`
	Saved      int       `json:"saved"`
	WithImages int       `json:"with_images"`
	Errors     int       `json:"errors"`
	Pages      int       `json:"pages"`
	Genres     []string  `json:"genres"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
}

// MovieFetcher pages through catalog listings, enriches each movie with its
// details and stores it.
type MovieFetcher struct {
	catalog domain.Catalog
	sink    MovieSink
	images  ImageFetcher
	cfg     FetchConfig
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewMovieFetcher creates a MovieFetcher. images may be nil.
func NewMovieFetcher(catalog domain.Catalog, sink MovieSink, images ImageFetcher, cfg FetchConfig, logger *slog.Logger) *MovieFetcher {
	if cfg.Count <= 0 {
		cfg.Count = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &MovieFetcher{
		catalog: catalog,
		sink:    sink,
		images:  images,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
}

// WithFetchClock replaces the clock used for page and retry delays.
func (f *MovieFetcher) WithFetchClock(c clockwork.Clock) *MovieFetcher {
	f.clock = c
	return f
}

// Run fetches until Count movies were retrieved, the listing is exhausted,
// MaxPages is reached or ctx is cancelled. Per-movie failures are counted and
// skipped.
func (f *MovieFetcher) Run(ctx context.Context) (MovieStats, error) {
	stats := MovieStats{Requested: f.cfg.Count, Start: domain.Now()}
	genres := make(map[string]struct{})
	seen := make(map[int64]struct{})

	f.logger.Info("movie fetch started",
		"count", f.cfg.Count,
		"min_vote_count", f.cfg.Query.MinVoteCount,
		"min_vote_average", f.cfg.Query.MinVoteAverage,
		"images", f.downloadsImages(),
	)

	page, failures := 1, 0
	for stats.Fetched < f.cfg.Count && page <= f.cfg.MaxPages {
		if ctx.Err() != nil {
			break
		}
		listing, err := f.catalog.Discover(ctx, f.cfg.Query, page)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			if failures > f.cfg.MaxRetries {
				f.logger.Error("giving up on listing page", "page", page, "attempts", failures, "error", err)
				stats.Errors++
				break
			}
			f.logger.Warn("listing page failed", "page", page, "error", err, "retry_in", f.cfg.RetryDelay)
			if !sleepWithContext(ctx, f.clock, f.cfg.RetryDelay) {
				break
			}
			continue
		}
		failures = 0
		stats.Pages++

		if len(listing.Results) == 0 {
			f.logger.Info("no more results", "page", page)
			break
		}
		for _, summary := range listing.Results {
			if stats.Fetched >= f.cfg.Count || ctx.Err() != nil {
				break
			}
			if _, dup := seen[summary.ID]; dup {
				continue
			}
			seen[summary.ID] = struct{}{}
			f.fetchOne(ctx, summary, &stats, genres)
		}

		if page >= listing.TotalPages {
			f.logger.Info("reached last page", "page", page)
			break
		}
		page++
		if stats.Fetched < f.cfg.Count && !sleepWithContext(ctx, f.clock, f.cfg.PageDelay) {
			break
		}
	}

	stats.Genres = make([]string, 0, len(genres))
	for g := range genres {
		stats.Genres = append(stats.Genres, g)
	}
	sort.Strings(stats.Genres)
	stats.End = domain.Now()

	if stats.Fetched < f.cfg.Count {
		f.logger.Warn("fewer movies than requested", "fetched", stats.Fetched, "requested", f.cfg.Count)
	}
	f.logger.Info("movie fetch finished",
		"fetched", stats.Fetched,
		"saved", stats.Saved,
		"with_images", stats.WithImages,
		"errors", stats.Errors,
		"pages", stats.Pages,
	)
	return stats, ctx.Err()
}

func (f *MovieFetcher) fetchOne(ctx context.Context, summary domain.MovieSummary, stats *MovieStats, genres map[string]struct{}) {
	detail, err := f.catalog.MovieDetails(ctx, summary.ID)
	if err != nil {
		f.logger.Warn("movie details failed", "movie", summary.ID, "title", summary.Title, "error", err)
		stats.Errors++
		return
	}
	stats.Fetched++

	m := domain.NormalizeMovie(detail, f.cfg.ImageBaseURL)
	if f.downloadsImages() {
		paths := f.images.Download(ctx, m, f.cfg.ImageDir)
		m.LocalPosterPath, m.LocalBannerPath = paths.Poster, paths.Backdrop
		if paths.Any() {
			stats.WithImages++
		}
	}

	if err := f.sink.SaveMovie(ctx, m); err != nil {
		f.logger.Error("save movie failed", "movie", m.ID, "title", m.Title, "error", err)
		stats.Errors++
		return
	}
	stats.Saved++
	for _, g := range m.GenresOriginal {
		genres[g.Name] = struct{}{}
	}
	f.logger.Debug("movie saved", "movie", m.ID, "title", m.Title)
}

func (f *MovieFetcher) downloadsImages() bool {
	return f.images != nil && f.cfg.ImageDir != ""
}
