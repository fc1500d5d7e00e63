// Package mongo persists places, theaters, movies and run progress to MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

// Collection names.
const (
	Cities           = "cities"
	Theaters         = "theaters"
	Movies           = "movies"
	Actors           = "actors"
	Directors        = "directors"
	Genres           = "genres"
	Progress         = "progress"
	Showtimes        = "showtimes"
	OperationalHours = "operational_hours"
)

// Options configures a Store.
type Options struct {
	URI       string
	Database  string
	Timeout   time.Duration
	BatchSize int
	Policy    domain.ErrorPolicy
}

// Store is the record store writer and reader.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	writer  batchWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Connect dials MongoDB, pings it and returns a Store. The caller must Close it.
func Connect(ctx context.Context, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI).SetServerSelectionTimeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{
		client:  client,
		db:      client.Database(opts.Database),
		timeout: opts.Timeout,
		writer: batchWriter{
			size:    opts.BatchSize,
			policy:  opts.Policy,
			logger:  logger,
			metrics: metrics,
		},
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the server is reachable. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// CheckReadiness implements the readiness checker used by the health server.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("mongo not reachable: %w", err)
	}
	return nil
}

type indexSpec struct {
	collection string
	keys       bson.D
	unique     bool
	name       string
}

var indexes = []indexSpec{
	{Cities, bson.D{{Key: "key", Value: 1}}, true, "key_unique"},
	{Cities, bson.D{{Key: "population", Value: -1}}, false, "population_desc"},
	{Cities, bson.D{{Key: "processed", Value: 1}}, false, "processed"},
	{Theaters, bson.D{{Key: "unique_id", Value: 1}}, true, "unique_id_unique"},
	{Theaters, bson.D{{Key: "location", Value: "2dsphere"}}, false, "location_2dsphere"},
	{Movies, bson.D{{Key: "id", Value: 1}}, true, "id_unique"},
	{Actors, bson.D{{Key: "id", Value: 1}}, true, "id_unique"},
	{Directors, bson.D{{Key: "id", Value: 1}}, true, "id_unique"},
	{Genres, bson.D{{Key: "id", Value: 1}}, true, "id_unique"},
	{Progress, bson.D{{Key: "timestamp", Value: -1}}, false, "timestamp_desc"},
	{OperationalHours, bson.D{{Key: "theater_id", Value: 1}}, true, "theater_id_unique"},
	{Showtimes, bson.D{{Key: "theater_id", Value: 1}, {Key: "movie_id", Value: 1}, {Key: "date", Value: 1}}, false, "theater_movie_date"},
}

// EnsureIndexes creates the unique and lookup indexes every command relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, ix := range indexes {
		opts := options.Index().SetName(ix.name)
		if ix.unique {
			opts.SetUnique(true)
		}
		_, err := s.db.Collection(ix.collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: ix.keys, Options: opts})
		if err != nil {
			return fmt.Errorf("ensure index %s.%s: %w", ix.collection, ix.name, err)
		}
	}
	return nil
}

// Counts returns the document count of each named collection.
func (s *Store) Counts(ctx context.Context, collections ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(collections))
	for _, c := range collections {
		n, err := s.db.Collection(c).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c, err)
		}
		out[c] = n
	}
	return out, nil
}

// findAll decodes every document matched by filter into a slice of T.
func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

// isNoDocuments reports whether err means an empty result.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
