package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

var pendingFilter = bson.D{
	{Key: "processed", Value: bson.D{{Key: "$ne", Value: true}}},
	{Key: "population", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}},
}

// placeModels builds upserts that refresh place data while leaving the
// progress fields of an existing document untouched.
func placeModels(places []*domain.Place) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(places))
	for _, p := range places {
		set := bson.D{
			{Key: "name", Value: p.Name},
			{Key: "state", Value: p.State},
			{Key: "last_updated", Value: p.LastUpdated},
		}
		if p.GEOID != "" {
			set = append(set, bson.E{Key: "geoid", Value: p.GEOID})
		}
		if p.Latitude != nil {
			set = append(set, bson.E{Key: "latitude", Value: *p.Latitude})
		}
		if p.Longitude != nil {
			set = append(set, bson.E{Key: "longitude", Value: *p.Longitude})
		}
		if p.Population != nil {
			set = append(set, bson.E{Key: "population", Value: *p.Population})
		}
		if p.LandAreaSqMi != nil {
			set = append(set, bson.E{Key: "land_area_sqmi", Value: *p.LandAreaSqMi})
		}
		if p.WaterAreaSqMi != nil {
			set = append(set, bson.E{Key: "water_area_sqmi", Value: *p.WaterAreaSqMi})
		}

		update := bson.D{
			{Key: "$set", Value: set},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "processed", Value: false},
				{Key: "theaters_found", Value: 0},
			}},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "key", Value: p.Key}}).
			SetUpdate(update).
			SetUpsert(true))
	}
	return models
}

// UpsertPlaces writes places to the cities collection keyed by storage key.
// Re-importing never resets processing progress.
func (s *Store) UpsertPlaces(ctx context.Context, places []*domain.Place) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}
	return s.writer.write(ctx, Cities, s.db.Collection(Cities), placeModels(places))
}

// PendingPlaces returns up to limit unprocessed places with a population,
// largest first.
func (s *Store) PendingPlaces(ctx context.Context, limit int) ([]domain.Place, error) {
	opts := options.Find().SetSort(bson.D{{Key: "population", Value: -1}, {Key: "key", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[domain.Place](ctx, s.db.Collection(Cities), pendingFilter, opts)
}

// SamplePendingPlaces returns up to limit unprocessed places chosen at random.
func (s *Store) SamplePendingPlaces(ctx context.Context, limit int) ([]domain.Place, error) {
	if limit <= 0 {
		limit = 1
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: pendingFilter}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: limit}}}},
	}
	cur, err := s.db.Collection(Cities).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("sample pending places: %w", err)
	}
	out := make([]domain.Place, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode sampled places: %w", err)
	}
	return out, nil
}

// CountPending returns how many places still await processing.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(Cities).CountDocuments(ctx, pendingFilter)
	if err != nil {
		return 0, fmt.Errorf("count pending places: %w", err)
	}
	return n, nil
}

// MarkProcessed records the outcome of one place. A failed place is still
// marked processed so it is not retried automatically; errMsg keeps the cause.
func (s *Store) MarkProcessed(ctx context.Context, key string, found int, errMsg string) error {
	set := bson.D{
		{Key: "processed", Value: true},
		{Key: "theaters_found", Value: found},
		{Key: "processed_at", Value: domain.Now()},
	}
	var update bson.D
	if errMsg != "" {
		set = append(set, bson.E{Key: "error", Value: errMsg})
		update = bson.D{{Key: "$set", Value: set}}
	} else {
		update = bson.D{
			{Key: "$set", Value: set},
			{Key: "$unset", Value: bson.D{{Key: "error", Value: ""}}},
		}
	}

	res, err := s.db.Collection(Cities).UpdateOne(ctx, bson.D{{Key: "key", Value: key}}, update)
	if err != nil {
		return fmt.Errorf("mark %s processed: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mark %s processed: %w", key, mongo.ErrNoDocuments)
	}
	return nil
}

// ResetProgress clears the processed flag on every place.
func (s *Store) ResetProgress(ctx context.Context) (int64, error) {
	res, err := s.db.Collection(Cities).UpdateMany(ctx, bson.D{}, bson.D{
		{Key: "$set", Value: bson.D{{Key: "processed", Value: false}, {Key: "theaters_found", Value: 0}}},
		{Key: "$unset", Value: bson.D{{Key: "error", Value: ""}, {Key: "processed_at", Value: ""}}},
	})
	if err != nil {
		return 0, fmt.Errorf("reset progress: %w", err)
	}
	return res.ModifiedCount, nil
}

// AllPlaces returns every stored place ordered by key.
func (s *Store) AllPlaces(ctx context.Context) ([]domain.Place, error) {
	return findAll[domain.Place](ctx, s.db.Collection(Cities), bson.D{}, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
}

// GetPlace returns the place stored under key.
func (s *Store) GetPlace(ctx context.Context, key string) (domain.Place, bool, error) {
	var p domain.Place
	err := s.db.Collection(Cities).FindOne(ctx, bson.D{{Key: "key", Value: key}}).Decode(&p)
	if isNoDocuments(err) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("get place %s: %w", key, err)
	}
	return p, true, nil
}

// TopPlaces returns the most populous places.
func (s *Store) TopPlaces(ctx context.Context, limit int) ([]domain.Place, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "population", Value: -1}}).
		SetLimit(int64(limit))
	filter := bson.D{{Key: "population", Value: bson.D{{Key: "$exists", Value: true}}}}
	return findAll[domain.Place](ctx, s.db.Collection(Cities), filter, opts)
}

// CountWithPopulation returns how many places carry a population figure.
func (s *Store) CountWithPopulation(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(Cities).CountDocuments(ctx, bson.D{{Key: "population", Value: bson.D{{Key: "$exists", Value: true}}}})
	if err != nil {
		return 0, fmt.Errorf("count places with population: %w", err)
	}
	return n, nil
}
