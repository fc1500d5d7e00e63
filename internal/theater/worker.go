package theater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

// Sink stores generated theaters.
type Sink interface {
	UpsertTheaters(ctx context.Context, theaters []domain.Theater) (int, error)
}

// Worker generates and stores the theaters of one place per call. It
// satisfies pipeline.Worker.
type Worker struct {
	gen     *Generator
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWorker creates a Worker.
func NewWorker(gen *Generator, sink Sink, logger *slog.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{gen: gen, sink: sink, logger: logger, metrics: metrics}
}

// Process returns the number of theaters stored for place.
func (w *Worker) Process(ctx context.Context, place domain.Place) (int, error) {
	theaters := w.gen.Generate(place)
	if len(theaters) == 0 {
		w.logger.Info("no theaters for place", "place", place.Key, "population", place.PopulationOrZero())
		return 0, nil
	}
	n, err := w.sink.UpsertTheaters(ctx, theaters)
	if err != nil {
		return 0, fmt.Errorf("store theaters for %s: %w", place.Key, err)
	}
	w.metrics.TheatersGenerated.Add(float64(n))
	w.logger.Info("theaters stored", "place", place.Key, "count", n)
	return n, nil
}
