package showtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// ErrNoTheaters and ErrNoMovies are returned by Run when there is nothing to schedule.
var (
	ErrNoTheaters = errors.New("no theaters stored")
	ErrNoMovies   = errors.New("no movies released within the window")
)

// Store reads theaters and recent movies and persists schedules.
type Store interface {
	AllTheaters(ctx context.Context) ([]domain.Theater, error)
	RecentMovies(ctx context.Context, since time.Time) ([]domain.Movie, error)
	UpsertOperationalHours(ctx context.Context, hours []domain.OperationalHours) (int, error)
	ClearShowtimes(ctx context.Context, theaterIDs []string) (int64, error)
	InsertShowtimes(ctx context.Context, showtimes []domain.Showtime) (int, error)
}

// Stats summarize one scheduling run.
type Stats struct {
	TheatersProcessed  int       `json:"theaters_processed"`
	MoviesScheduled    int       `json:"movies_processed"`
	ShowtimesGenerated int       `json:"showtimes_generated"`
	ShowtimesCleared   int64     `json:"showtimes_cleared"`
	Start              time.Time `json:"start_time"`
	End                time.Time `json:"end_time"`
}

// Run regenerates hours and showtimes for every stored theater. Existing
// showtimes of a theater are replaced.
func Run(ctx context.Context, gen *Generator, store Store, logger *slog.Logger) (Stats, error) {
	stats := Stats{Start: domain.Now()}

	theaters, err := store.AllTheaters(ctx)
	if err != nil {
		return stats, fmt.Errorf("load theaters: %w", err)
	}
	if len(theaters) == 0 {
		return stats, ErrNoTheaters
	}

	since := stats.Start.Add(-gen.settings.ReleaseWindow())
	movies, err := store.RecentMovies(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("load recent movies: %w", err)
	}
	if len(movies) == 0 {
		return stats, fmt.Errorf("%w (since %s)", ErrNoMovies, since.Format(time.DateOnly))
	}
	logger.Info("scheduling showtimes", "theaters", len(theaters), "movies", len(movies), "since", since.Format(time.DateOnly))

	for _, th := range theaters {
		if ctx.Err() != nil {
			break
		}
		hours := gen.Hours(th.UniqueID)
		if _, err := store.UpsertOperationalHours(ctx, []domain.OperationalHours{hours}); err != nil {
			return stats, fmt.Errorf("store hours for %s: %w", th.UniqueID, err)
		}
		cleared, err := store.ClearShowtimes(ctx, []string{th.UniqueID})
		if err != nil {
			return stats, fmt.Errorf("clear showtimes for %s: %w", th.UniqueID, err)
		}
		stats.ShowtimesCleared += cleared

		buffer := gen.BufferMinutes()
		var batch []domain.Showtime
		picked := gen.PickMovies(movies)
		for _, m := range picked {
			batch = append(batch, gen.ForMovie(th, hours, m, buffer, stats.Start)...)
		}
		n, err := store.InsertShowtimes(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("store showtimes for %s: %w", th.UniqueID, err)
		}

		stats.TheatersProcessed++
		stats.MoviesScheduled += len(picked)
		stats.ShowtimesGenerated += n
		logger.Debug("theater scheduled", "theater", th.UniqueID, "movies", len(picked), "showtimes", n, "buffer_minutes", buffer)
	}

	stats.End = domain.Now()
	logger.Info("showtime generation complete",
		"theaters", stats.TheatersProcessed,
		"movies", stats.MoviesScheduled,
		"showtimes", stats.ShowtimesGenerated,
	)
	return stats, ctx.Err()
}
