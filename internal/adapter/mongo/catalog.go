package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// SaveMovie upserts a movie and its actors, directors and genres.
func (s *Store) SaveMovie(ctx context.Context, m domain.Movie) error {
	if _, err := UpsertMany(ctx, s, Movies, "id", []domain.Movie{m}, movieID); err != nil {
		return fmt.Errorf("save movie %d: %w", m.ID, err)
	}
	if _, err := UpsertMany(ctx, s, Actors, "id", m.Actors(), personID); err != nil {
		return fmt.Errorf("save actors of movie %d: %w", m.ID, err)
	}
	if _, err := UpsertMany(ctx, s, Directors, "id", m.Directors, personID); err != nil {
		return fmt.Errorf("save directors of movie %d: %w", m.ID, err)
	}
	if _, err := UpsertMany(ctx, s, Genres, "id", m.GenreRecords(), genreID); err != nil {
		return fmt.Errorf("save genres of movie %d: %w", m.ID, err)
	}
	if s.metrics != nil {
		s.metrics.MoviesSaved.Inc()
	}
	return nil
}

func movieID(m domain.Movie) any { return m.ID }
func personID(p domain.Person) any { return p.ID }
func genreID(g domain.GenreRecord) any { return g.ID }
func theaterID(t domain.Theater) any { return t.UniqueID }
func hoursID(h domain.OperationalHours) any { return h.TheaterID }

// AllMovies returns every stored movie ordered by popularity.
func (s *Store) AllMovies(ctx context.Context) ([]domain.Movie, error) {
	opts := options.Find().SetSort(bson.D{{Key: "popularity", Value: -1}})
	return findAll[domain.Movie](ctx, s.db.Collection(Movies), bson.D{}, opts)
}

// RecentMovies returns movies released on or after since. Release dates are
// stored as YYYY-MM-DD so a string comparison orders them.
func (s *Store) RecentMovies(ctx context.Context, since time.Time) ([]domain.Movie, error) {
	filter := bson.D{{Key: "release_date", Value: bson.D{{Key: "$gte", Value: since.Format(time.DateOnly)}}}}
	opts := options.Find().SetSort(bson.D{{Key: "release_date", Value: -1}})
	return findAll[domain.Movie](ctx, s.db.Collection(Movies), filter, opts)
}
