package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

// EventBatchFinished is the event_type header of batch progress messages.
const EventBatchFinished = "batch_finished"

// messageWriter is the subset of *kafkago.Writer used by ProgressWriter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ProgressWriter publishes one message per finished driver batch.
// It implements pipeline.ProgressPublisher.
type ProgressWriter struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewProgressWriter creates a producer for the progress topic.
func NewProgressWriter(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *ProgressWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &ProgressWriter{writer: w, logger: logger, metrics: metrics}
}

// PublishBatch serializes stats and writes them keyed by run id so every
// batch of a run lands on the same partition.
func (w *ProgressWriter) PublishBatch(ctx context.Context, stats domain.BatchStats) error {
	msg, err := serializeToMessage(stats)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish batch %d: %w", stats.Batch, err)
	}
	w.metrics.ProgressEventsPublished.Inc()
	w.logger.Debug("progress event published", "run_id", stats.RunID, "batch", stats.Batch)
	return nil
}

func (w *ProgressWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals BatchStats into a Kafka message.
func serializeToMessage(stats domain.BatchStats) (kafkago.Message, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize batch stats: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(stats.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(EventBatchFinished)},
			{Key: "status", Value: []byte(stats.Status)},
			{Key: "batch", Value: []byte(strconv.Itoa(stats.Batch))},
			{Key: "published_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}

// ParseMessage decodes a progress message back into BatchStats.
func ParseMessage(msg kafkago.Message) (domain.BatchStats, error) {
	var stats domain.BatchStats
	if err := json.Unmarshal(msg.Value, &stats); err != nil {
		return domain.BatchStats{}, fmt.Errorf("decode batch stats: %w", err)
	}
	return stats, nil
}

// Header returns the value of the named header, or "".
func Header(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
