package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// UpsertTheaters writes theaters keyed by unique_id.
func (s *Store) UpsertTheaters(ctx context.Context, theaters []domain.Theater) (int, error) {
	return UpsertMany(ctx, s, Theaters, "unique_id", theaters, theaterID)
}

// AllTheaters returns every stored theater ordered by id.
func (s *Store) AllTheaters(ctx context.Context) ([]domain.Theater, error) {
	opts := options.Find().SetSort(bson.D{{Key: "unique_id", Value: 1}})
	return findAll[domain.Theater](ctx, s.db.Collection(Theaters), bson.D{}, opts)
}

// TheatersByBrand counts theaters per brand, largest first.
func (s *Store) TheatersByBrand(ctx context.Context) ([]domain.BrandCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$brand"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.db.Collection(Theaters).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("theaters by brand: %w", err)
	}
	var out []domain.BrandCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode theaters by brand: %w", err)
	}
	return out, nil
}

// InsertShowtimes appends showtimes in batches.
func (s *Store) InsertShowtimes(ctx context.Context, showtimes []domain.Showtime) (int, error) {
	if len(showtimes) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(showtimes))
	for _, st := range showtimes {
		models = append(models, mongo.NewInsertOneModel().SetDocument(st))
	}
	return s.writer.write(ctx, Showtimes, s.db.Collection(Showtimes), models)
}

// ClearShowtimes removes every showtime of the given theaters.
func (s *Store) ClearShowtimes(ctx context.Context, theaterIDs []string) (int64, error) {
	res, err := s.db.Collection(Showtimes).DeleteMany(ctx, bson.D{{Key: "theater_id", Value: bson.D{{Key: "$in", Value: theaterIDs}}}})
	if err != nil {
		return 0, fmt.Errorf("clear showtimes: %w", err)
	}
	return res.DeletedCount, nil
}

// UpsertOperationalHours writes hours keyed by theater id.
func (s *Store) UpsertOperationalHours(ctx context.Context, hours []domain.OperationalHours) (int, error) {
	return UpsertMany(ctx, s, OperationalHours, "theater_id", hours, hoursID)
}
