package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
)

// ErrAborted is returned by Run when an item fails under the abort policy.
var ErrAborted = errors.New("run aborted")

// Stop reasons reported on the run summary.
const (
	StopNoPending  = "no_pending"
	StopMaxBatches = "max_batches"
	StopMaxItems   = "max_items"
	StopAborted    = "aborted"
	StopCancelled  = "cancelled"
)

// PendingSource returns up to limit places that still need processing.
type PendingSource interface {
	Pending(ctx context.Context, limit int) ([]domain.Place, error)
}

// PendingFunc adapts a store query to PendingSource.
type PendingFunc func(ctx context.Context, limit int) ([]domain.Place, error)

func (f PendingFunc) Pending(ctx context.Context, limit int) ([]domain.Place, error) {
	return f(ctx, limit)
}

// Worker processes one place and reports how many items it produced.
type Worker interface {
	Process(ctx context.Context, place domain.Place) (int, error)
}

// ProgressRecorder persists per-place outcomes and per-batch statistics.
type ProgressRecorder interface {
	MarkProcessed(ctx context.Context, key string, found int, errMsg string) error
	SaveBatchStats(ctx context.Context, stats domain.BatchStats) error
}

// ProgressPublisher announces finished batches to other systems.
type ProgressPublisher interface {
	PublishBatch(ctx context.Context, stats domain.BatchStats) error
}

// Config controls batching, pacing and termination.
type Config struct {
	BatchSize    int
	DelayMin     time.Duration
	DelayMax     time.Duration
	BatchDelay   time.Duration
	BatchTimeout time.Duration
	MaxBatches   int // 0 = unlimited
	MaxItems     int // 0 = unlimited
	Policy       domain.ErrorPolicy
}

// Driver runs the paced, resumable batch loop over pending places.
type Driver struct {
	source    PendingSource
	worker    Worker
	recorder  ProgressRecorder
	publisher ProgressPublisher
	cfg       Config
	clock     clockwork.Clock
	rng       *rand.Rand
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// Option customizes a Driver.
type Option func(*Driver)

// WithClock replaces the real clock used for pacing and timeouts.
func WithClock(c clockwork.Clock) Option { return func(d *Driver) { d.clock = c } }

// WithRand replaces the random source used for delays.
func WithRand(r *rand.Rand) Option { return func(d *Driver) { d.rng = r } }

// WithPublisher sends every finished batch to p.
func WithPublisher(p ProgressPublisher) Option { return func(d *Driver) { d.publisher = p } }

// NewDriver creates a Driver over the given ports.
func NewDriver(source PendingSource, worker Worker, recorder ProgressRecorder, cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Driver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.PolicySkip
	}
	d := &Driver{
		source:   source,
		worker:   worker,
		recorder: recorder,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckReadiness returns nil once the driver has finished at least one batch.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("driver has not finished a batch yet")
	}
	return nil
}

// Run processes batches until nothing is pending, a limit is reached, an item
// fails under the abort policy, or ctx is cancelled. Progress is persisted per
// item, so a later Run resumes where this one stopped.
func (d *Driver) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{RunID: uuid.NewString()}
	d.logger.Info("driver started",
		"run_id", summary.RunID,
		"batch_size", d.cfg.BatchSize,
		"max_batches", d.cfg.MaxBatches,
		"max_items", d.cfg.MaxItems,
		"policy", d.cfg.Policy,
	)
	d.metrics.DriverRunning.Set(1)
	defer d.metrics.DriverRunning.Set(0)

	// Exponential backoff on source errors: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	batch := 0
	for {
		if ctx.Err() != nil {
			return d.finish(summary, StopCancelled), nil
		}
		if d.cfg.MaxBatches > 0 && batch >= d.cfg.MaxBatches {
			return d.finish(summary, StopMaxBatches), nil
		}
		limit := d.cfg.BatchSize
		if d.cfg.MaxItems > 0 {
			remaining := d.cfg.MaxItems - summary.Processed
			if remaining <= 0 {
				return d.finish(summary, StopMaxItems), nil
			}
			limit = min(limit, remaining)
		}

		items, err := d.source.Pending(ctx, limit)
		if err != nil {
			if ctx.Err() != nil {
				return d.finish(summary, StopCancelled), nil
			}
			d.logger.Error("fetch pending items failed", "error", err, "retry_in", backoff)
			if !d.sleep(ctx, backoff) {
				return d.finish(summary, StopCancelled), nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if len(items) == 0 {
			return d.finish(summary, StopNoPending), nil
		}

		batch++
		stats, itemErr := d.runBatch(ctx, summary.RunID, batch, items)
		summary.Add(stats)
		d.record(ctx, stats)

		switch stats.Status {
		case domain.BatchAborted:
			return d.finish(summary, StopAborted), fmt.Errorf("%w: %w", ErrAborted, itemErr)
		case domain.BatchCancelled:
			return d.finish(summary, StopCancelled), nil
		}

		if !d.sleep(ctx, d.cfg.BatchDelay) {
			return d.finish(summary, StopCancelled), nil
		}
	}
}

// runBatch processes items in order. It returns the batch statistics and, for
// an aborted batch, the error that caused it.
func (d *Driver) runBatch(ctx context.Context, runID string, batch int, items []domain.Place) (domain.BatchStats, error) {
	start := d.clock.Now()
	stats := domain.BatchStats{
		RunID:     runID,
		Batch:     batch,
		BatchSize: d.cfg.BatchSize,
		Pending:   len(items),
		Status:    domain.BatchCompleted,
		Start:     start.UTC(),
	}
	d.logger.Info("batch started", "batch", batch, "items", len(items))

	var abortErr error
	for i, place := range items {
		if ctx.Err() != nil {
			stats.Status = domain.BatchCancelled
			break
		}
		if d.cfg.BatchTimeout > 0 && d.clock.Since(start) >= d.cfg.BatchTimeout {
			d.logger.Warn("batch timed out", "batch", batch, "elapsed", d.clock.Since(start), "remaining", len(items)-i)
			stats.Status = domain.BatchTimeout
			break
		}

		state, found, err := d.processItem(ctx, place)
		if state == domain.StatePending {
			// Interrupted before an outcome was known; the item stays pending.
			stats.Status = domain.BatchCancelled
			break
		}
		stats.Processed++
		stats.Found += found
		if state == domain.StateError {
			stats.Errors++
			if d.cfg.Policy == domain.PolicyAbort {
				stats.Status = domain.BatchAborted
				abortErr = fmt.Errorf("item %s: %w", place.Key, err)
				break
			}
		}

		if i < len(items)-1 && !d.sleep(ctx, d.itemDelay()) {
			stats.Status = domain.BatchCancelled
			break
		}
	}

	end := d.clock.Now()
	stats.End = end.UTC()
	stats.DurationSeconds = end.Sub(start).Seconds()
	stats.Timestamp = domain.Now()

	d.metrics.BatchesFinished.WithLabelValues(stats.Status).Inc()
	d.metrics.BatchProcessingDuration.Observe(stats.DurationSeconds)
	if stats.Status == domain.BatchCompleted {
		d.ready.Store(true)
	}

	d.logger.Info("batch finished",
		"batch", batch,
		"status", stats.Status,
		"processed", stats.Processed,
		"found", stats.Found,
		"errors", stats.Errors,
		"duration_seconds", stats.DurationSeconds,
	)
	return stats, abortErr
}

// processItem moves one place from IN_PROGRESS to DONE or ERROR and records
// the outcome. It returns PENDING when ctx was cancelled mid-item.
func (d *Driver) processItem(ctx context.Context, place domain.Place) (domain.ItemState, int, error) {
	d.logger.Debug("processing item", "place", place.Key, "state", domain.StateInProgress, "population", place.PopulationOrZero())

	found, err := d.worker.Process(ctx, place)
	if err != nil && ctx.Err() != nil {
		return domain.StatePending, 0, err
	}

	if err != nil {
		d.metrics.ItemsProcessed.WithLabelValues("error").Inc()
		d.logger.Warn("item failed", "place", place.Key, "state", domain.StateError, "error", err)
		if recErr := d.recorder.MarkProcessed(ctx, place.Key, 0, err.Error()); recErr != nil {
			d.logger.Error("record item error failed", "place", place.Key, "error", recErr)
		}
		return domain.StateError, 0, err
	}

	d.metrics.ItemsProcessed.WithLabelValues("done").Inc()
	if recErr := d.recorder.MarkProcessed(ctx, place.Key, found, ""); recErr != nil {
		d.logger.Error("record item progress failed", "place", place.Key, "error", recErr)
	}
	d.logger.Debug("item done", "place", place.Key, "state", domain.StateDone, "found", found)
	return domain.StateDone, found, nil
}

// record saves and publishes batch statistics. Failures are logged only.
func (d *Driver) record(ctx context.Context, stats domain.BatchStats) {
	// Stats are still saved when ctx is already cancelled.
	saveCtx := context.WithoutCancel(ctx)
	if err := d.recorder.SaveBatchStats(saveCtx, stats); err != nil {
		d.logger.Error("save batch stats failed", "batch", stats.Batch, "error", err)
	}
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishBatch(saveCtx, stats); err != nil {
		d.logger.Warn("publish batch stats failed", "batch", stats.Batch, "error", err)
	}
}

func (d *Driver) finish(summary domain.RunSummary, reason string) domain.RunSummary {
	summary.StopReason = reason
	d.logger.Info("driver finished",
		"run_id", summary.RunID,
		"reason", reason,
		"batches", summary.Batches,
		"processed", summary.Processed,
		"found", summary.Found,
		"errors", summary.Errors,
	)
	return summary
}

// itemDelay picks a uniform delay in [DelayMin, DelayMax].
func (d *Driver) itemDelay() time.Duration {
	spread := d.cfg.DelayMax - d.cfg.DelayMin
	if spread <= 0 {
		return d.cfg.DelayMin
	}
	return d.cfg.DelayMin + time.Duration(d.rng.Int64N(int64(spread)+1))
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) bool {
	return sleepWithContext(ctx, d.clock, dur)
}

// sleepWithContext is retry.SleepWithContext driven by an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
