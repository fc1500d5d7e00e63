package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "movie_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL commands.
type Metrics struct {
	DriverRunning prometheus.Gauge

	// Batch driver metrics.
	ItemsProcessed          *prometheus.CounterVec // labels: outcome={done,error}
	BatchesFinished         *prometheus.CounterVec // labels: status={completed,timeout,aborted,cancelled}
	BatchProcessingDuration prometheus.Histogram
	TheatersGenerated       prometheus.Counter

	// Store metrics.
	StoreWrites        *prometheus.CounterVec   // labels: collection, outcome={ok,error}
	StoreWriteDuration *prometheus.HistogramVec // labels: collection

	// Catalog metrics.
	CatalogRequests    *prometheus.CounterVec   // labels: endpoint={discover,details,image}, outcome={success,error,rejected}
	CatalogCache       *prometheus.CounterVec   // labels: result={hit,miss}
	CatalogAPIDuration *prometheus.HistogramVec // labels: endpoint
	MoviesSaved        prometheus.Counter

	ProgressEventsPublished prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DriverRunning,
		m.ItemsProcessed,
		m.BatchesFinished,
		m.BatchProcessingDuration,
		m.TheatersGenerated,
		m.StoreWrites,
		m.StoreWriteDuration,
		m.CatalogRequests,
		m.CatalogCache,
		m.CatalogAPIDuration,
		m.MoviesSaved,
		m.ProgressEventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DriverRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "driver_running",
			Help:      "1 while a batch driver is active, 0 otherwise.",
		}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Places handled by the batch driver by outcome.",
		}, []string{"outcome"}),
		BatchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_finished_total",
			Help:      "Driver batches by final status.",
		}, []string{"status"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Wall-clock duration of one driver batch.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		TheatersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "theaters_generated_total",
			Help:      "Synthetic theaters generated.",
		}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Documents written to MongoDB by collection and outcome.",
		}, []string{"collection", "outcome"}),
		StoreWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_write_duration_seconds",
			Help:      "Duration of one bulk write.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"collection"}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "TMDB requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Movie detail cache lookups by result.",
		}, []string{"result"}),
		CatalogAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_api_duration_seconds",
			Help:      "TMDB request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		MoviesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movies_saved_total",
			Help:      "Movies upserted into the store.",
		}),
		ProgressEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_published_total",
			Help:      "Batch progress events written to Kafka.",
		}),
	}
}
