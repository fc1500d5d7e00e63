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

const defaultBatchSize = 500

// bulkWriter is the slice of *mongo.Collection the batch writer needs.
type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// batchWriter splits write models into fixed-size bulk writes and applies
// the error policy to failed batches.
type batchWriter struct {
	size    int
	policy  domain.ErrorPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// write flushes models in batches and returns how many documents were
// written. Writes are unordered, so a batch failing with a bulk write
// exception still counts the documents the server applied. Under the skip
// policy a failed batch is logged and counted; under abort the error is
// returned with the count written so far.
func (w batchWriter) write(ctx context.Context, name string, coll bulkWriter, models []mongo.WriteModel) (int, error) {
	size := w.size
	if size <= 0 {
		size = defaultBatchSize
	}

	written, failed := 0, 0
	for _, r := range batchRanges(len(models), size) {
		batch := models[r[0]:r[1]]
		start := time.Now()
		res, err := coll.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
		if w.metrics != nil {
			w.metrics.StoreWriteDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			failed++
			applied := partialCount(res, err)
			written += applied
			if w.metrics != nil {
				w.metrics.StoreWrites.WithLabelValues(name, "ok").Add(float64(applied))
				w.metrics.StoreWrites.WithLabelValues(name, "error").Add(float64(len(batch) - applied))
			}
			if w.policy == domain.PolicyAbort || ctx.Err() != nil {
				return written, fmt.Errorf("bulk write %s [%d:%d]: %w", name, r[0], r[1], err)
			}
			w.logger.Error("bulk write failed, skipping batch",
				"collection", name,
				"from", r[0],
				"to", r[1],
				"applied", applied,
				"error", err,
			)
			continue
		}
		written += len(batch)
		if w.metrics != nil {
			w.metrics.StoreWrites.WithLabelValues(name, "ok").Add(float64(len(batch)))
		}
	}

	if failed > 0 {
		w.logger.Warn("bulk write finished with failed batches", "collection", name, "failed_batches", failed, "written", written)
	}
	return written, nil
}

// partialCount reports how many documents of a failed unordered batch were
// applied. Only a bulk write exception carries a trustworthy result; any
// other error counts the whole batch as unwritten.
func partialCount(res *mongo.BulkWriteResult, err error) int {
	var bwe mongo.BulkWriteException
	if res == nil || !errors.As(err, &bwe) {
		return 0
	}
	return int(res.InsertedCount + res.UpsertedCount + res.MatchedCount)
}

// batchRanges returns [from, to) bounds covering n items in chunks of size.
// The last range holds the remainder.
func batchRanges(n, size int) [][2]int {
	if n <= 0 || size <= 0 {
		return nil
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for from := 0; from < n; from += size {
		out = append(out, [2]int{from, min(from+size, n)})
	}
	return out
}

// replaceModels builds replace-or-insert models keyed on keyField.
func replaceModels[T any](docs []T, keyField string, key func(T) any) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: keyField, Value: key(d)}}).
			SetReplacement(d).
			SetUpsert(true))
	}
	return models
}

// UpsertMany replaces each document whose keyField matches, inserting it
// when absent. Documents are written in batches of the configured size.
func UpsertMany[T any](ctx context.Context, s *Store, collection, keyField string, docs []T, key func(T) any) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	return s.writer.write(ctx, collection, s.db.Collection(collection), replaceModels(docs, keyField, key))
}
