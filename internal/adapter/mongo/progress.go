package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// SaveBatchStats appends one batch record to the progress collection.
func (s *Store) SaveBatchStats(ctx context.Context, stats domain.BatchStats) error {
	if stats.Timestamp.IsZero() {
		stats.Timestamp = domain.Now()
	}
	if _, err := s.db.Collection(Progress).InsertOne(ctx, stats); err != nil {
		return fmt.Errorf("save batch %d stats: %w", stats.Batch, err)
	}
	return nil
}

// LastBatchStats returns the most recent batch record, if any.
func (s *Store) LastBatchStats(ctx context.Context) (domain.BatchStats, bool, error) {
	var stats domain.BatchStats
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	err := s.db.Collection(Progress).FindOne(ctx, bson.D{}, opts).Decode(&stats)
	if isNoDocuments(err) {
		return stats, false, nil
	}
	if err != nil {
		return stats, false, fmt.Errorf("last batch stats: %w", err)
	}
	return stats, true, nil
}
