package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/couchcryptid/movie-data-etl/internal/observability"
	"github.com/couchcryptid/movie-data-etl/internal/pipeline"
)

// --- mocks ---

// memStore is an in-memory PendingSource and ProgressRecorder.
type memStore struct {
	mu       sync.Mutex
	places   map[string]*domain.Place
	batches  []domain.BatchStats
	failNext int
}

func newMemStore(places ...domain.Place) *memStore {
	s := &memStore{places: make(map[string]*domain.Place)}
	for i := range places {
		p := places[i]
		s.places[p.Key] = &p
	}
	return s
}

func (s *memStore) Pending(_ context.Context, limit int) ([]domain.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return nil, errors.New("store unavailable")
	}
	var out []domain.Place
	for _, p := range s.places {
		if !p.Processed && p.HasPopulation() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PopulationOrZero() > out[j].PopulationOrZero() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkProcessed(_ context.Context, key string, found int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.places[key]
	p.Processed = true
	p.TheatersFound = found
	p.Error = errMsg
	return nil
}

func (s *memStore) SaveBatchStats(_ context.Context, stats domain.BatchStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, stats)
	return nil
}

func (s *memStore) processedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.places {
		if p.Processed {
			n++
		}
	}
	return n
}

// recordingWorker records the order in which places are processed.
type recordingWorker struct {
	mu      sync.Mutex
	seen    []string
	failFor map[string]error
	onItem  func(domain.Place)
}

func (w *recordingWorker) Process(_ context.Context, p domain.Place) (int, error) {
	w.mu.Lock()
	w.seen = append(w.seen, p.Key)
	w.mu.Unlock()
	if w.onItem != nil {
		w.onItem(p)
	}
	if err := w.failFor[p.Key]; err != nil {
		return 0, err
	}
	return 2, nil
}

type recordingPublisher struct {
	published []domain.BatchStats
}

func (r *recordingPublisher) PublishBatch(_ context.Context, stats domain.BatchStats) error {
	r.published = append(r.published, stats)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePlaces(n int) []domain.Place {
	out := make([]domain.Place, n)
	for i := range out {
		out[i] = domain.Place{Key: string(rune('a' + i)), Name: string(rune('A' + i))}
		out[i].SetPopulation(int64((i + 1) * 1000))
	}
	return out
}

func newDriver(src pipeline.PendingSource, w pipeline.Worker, rec pipeline.ProgressRecorder, cfg pipeline.Config, opts ...pipeline.Option) *pipeline.Driver {
	opts = append([]pipeline.Option{
		pipeline.WithClock(clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))),
		pipeline.WithRand(rand.New(rand.NewPCG(1, 2))),
	}, opts...)
	return pipeline.NewDriver(src, w, rec, cfg, discardLogger(), observability.NewMetricsForTesting(), opts...)
}

// --- tests ---

func TestDriver_ResumesAfterCrash(t *testing.T) {
	places := makePlaces(10)
	store := newMemStore(places...)

	// First run: crash (cancel) while the fourth item is in flight.
	ctx, cancel := context.WithCancel(context.Background())
	crashAfter := 4
	first := &recordingWorker{}
	first.onItem = func(domain.Place) {
		if len(first.seen) == crashAfter {
			cancel()
		}
	}
	_, err := newDriver(store, crashingWorker{first, ctx}, store, pipeline.Config{BatchSize: 3}).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, store.processedCount(), "the interrupted fourth item stays pending")

	// The fourth item committed just before the crash: 4 DONE, 6 pending.
	require.NoError(t, store.MarkProcessed(context.Background(), first.seen[3], 2, ""))
	require.Equal(t, 4, store.processedCount())

	second := &recordingWorker{}
	summary, err := newDriver(store, second, store, pipeline.Config{BatchSize: 3}).Run(context.Background())
	require.NoError(t, err)

	// Remaining six, population descending: f (6000) down to a (1000).
	assert.Equal(t, []string{"f", "e", "d", "c", "b", "a"}, second.seen)
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 12, summary.Found)
	assert.Equal(t, pipeline.StopNoPending, summary.StopReason)
	assert.Equal(t, 10, store.processedCount())
}

// crashingWorker returns the context error once ctx is cancelled, as a real
// worker interrupted mid-request would.
type crashingWorker struct {
	inner *recordingWorker
	ctx   context.Context
}

func (c crashingWorker) Process(ctx context.Context, p domain.Place) (int, error) {
	n, err := c.inner.Process(ctx, p)
	if c.ctx.Err() != nil {
		return 0, c.ctx.Err()
	}
	return n, err
}

func TestDriver_ProcessesInPopulationOrderAcrossBatches(t *testing.T) {
	store := newMemStore(makePlaces(5)...)
	w := &recordingWorker{}
	pub := &recordingPublisher{}

	d := newDriver(store, w, store, pipeline.Config{BatchSize: 2}, pipeline.WithPublisher(pub))
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, w.seen)
	assert.Equal(t, 3, summary.Batches)
	require.Len(t, store.batches, 3)
	assert.Equal(t, 1, store.batches[0].Batch)
	assert.Equal(t, 2, store.batches[0].Pending)
	assert.Equal(t, domain.BatchCompleted, store.batches[2].Status)
	assert.Equal(t, summary.RunID, store.batches[0].RunID)
	assert.Len(t, pub.published, 3)
	require.NoError(t, d.CheckReadiness(context.Background()))
}

func TestDriver_SkipPolicyRecordsErrors(t *testing.T) {
	store := newMemStore(makePlaces(3)...)
	w := &recordingWorker{failFor: map[string]error{"b": errors.New("upstream 503")}}

	summary, err := newDriver(store, w, store, pipeline.Config{BatchSize: 5, Policy: domain.PolicySkip}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 4, summary.Found)
	assert.Equal(t, "upstream 503", store.places["b"].Error)
	assert.True(t, store.places["b"].Processed)
}

func TestDriver_AbortPolicyStopsRun(t *testing.T) {
	store := newMemStore(makePlaces(4)...)
	w := &recordingWorker{failFor: map[string]error{"c": errors.New("bad response")}}

	summary, err := newDriver(store, w, store, pipeline.Config{BatchSize: 2, Policy: domain.PolicyAbort}).Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrAborted)
	assert.Contains(t, err.Error(), "bad response")

	assert.Equal(t, []string{"d", "c"}, w.seen)
	assert.Equal(t, pipeline.StopAborted, summary.StopReason)
	require.Len(t, store.batches, 1)
	assert.Equal(t, domain.BatchAborted, store.batches[0].Status)
	assert.Equal(t, 2, store.processedCount())
}

func TestDriver_MaxItemsAndMaxBatches(t *testing.T) {
	t.Run("max items trims the last batch", func(t *testing.T) {
		store := newMemStore(makePlaces(10)...)
		w := &recordingWorker{}
		summary, err := newDriver(store, w, store, pipeline.Config{BatchSize: 3, MaxItems: 5}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, summary.Processed)
		assert.Equal(t, pipeline.StopMaxItems, summary.StopReason)
		assert.Equal(t, 2, store.batches[1].Pending)
	})

	t.Run("max batches", func(t *testing.T) {
		store := newMemStore(makePlaces(10)...)
		w := &recordingWorker{}
		summary, err := newDriver(store, w, store, pipeline.Config{BatchSize: 3, MaxBatches: 2}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 6, summary.Processed)
		assert.Equal(t, 2, summary.Batches)
		assert.Equal(t, pipeline.StopMaxBatches, summary.StopReason)
	})
}

func TestDriver_BatchTimeout(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore(makePlaces(4)...)
	w := &recordingWorker{onItem: func(domain.Place) { clock.Advance(40 * time.Second) }}

	d := newDriver(store, w, store, pipeline.Config{BatchSize: 4, BatchTimeout: time.Minute, MaxBatches: 1}, pipeline.WithClock(clock))
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	// 0s: first item runs; 40s: second runs; 80s: timeout checked before the third.
	assert.Equal(t, 2, summary.Processed)
	require.Len(t, store.batches, 1)
	assert.Equal(t, domain.BatchTimeout, store.batches[0].Status)
	assert.InDelta(t, 80, store.batches[0].DurationSeconds, 0.001)
	require.Error(t, d.CheckReadiness(context.Background()))
}

func TestDriver_PacesItemsButNotAfterLast(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore(makePlaces(3)...)
	w := &recordingWorker{}
	cfg := pipeline.Config{BatchSize: 3, DelayMin: time.Second, DelayMax: time.Second, MaxBatches: 1}
	d := newDriver(store, w, store, cfg, pipeline.WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	var summary domain.RunSummary
	var runErr error
	go func() {
		defer close(done)
		summary, runErr = d.Run(ctx)
	}()

	// Two gaps between three items.
	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}
	<-done

	require.NoError(t, runErr)
	assert.Equal(t, 3, summary.Processed)
	assert.InDelta(t, 2, store.batches[0].DurationSeconds, 0.001)
}

func TestDriver_RetriesSourceErrorsWithBackoff(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newMemStore(makePlaces(1)...)
	store.failNext = 2
	w := &recordingWorker{}
	d := newDriver(store, w, store, pipeline.Config{BatchSize: 1}, pipeline.WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Run(ctx)
	}()

	start := clock.Now()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(400 * time.Millisecond)
	<-done

	assert.Equal(t, []string{"a"}, w.seen)
	assert.Equal(t, 600*time.Millisecond, clock.Since(start))
}

func TestDriver_CancelledContextStopsImmediately(t *testing.T) {
	store := newMemStore(makePlaces(3)...)
	w := &recordingWorker{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newDriver(store, w, store, pipeline.Config{}).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, w.seen)
	assert.Equal(t, pipeline.StopCancelled, summary.StopReason)
}

func TestDriver_Metrics(t *testing.T) {
	store := newMemStore(makePlaces(2)...)
	w := &recordingWorker{failFor: map[string]error{"a": errors.New("boom")}}
	metrics := observability.NewMetricsForTesting()

	d := pipeline.NewDriver(store, w, store, pipeline.Config{BatchSize: 5}, discardLogger(), metrics,
		pipeline.WithClock(clockwork.NewFakeClock()))
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ItemsProcessed.WithLabelValues("done")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ItemsProcessed.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BatchesFinished.WithLabelValues(domain.BatchCompleted)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.DriverRunning), 0)
}
