package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_engine"

// Metrics holds the Prometheus counters, histograms, and gauges for the flood engine.
type Metrics struct {
	SimulationsTotal    prometheus.Counter
	BuildingsClassified prometheus.Counter
	ServerRunning       prometheus.Gauge

	// Batch processing metrics.
	BatchLevels        prometheus.Histogram
	SimulationDuration prometheus.Histogram
	BatchDuration      prometheus.Histogram

	Exports *prometheus.CounterVec // labels: destination={file,kafka}, outcome={success,error}

	// Dataset metrics.
	DatasetsLoaded *prometheus.CounterVec // labels: source={geojson,shapefile,synthetic}
	DatasetErrors  *prometheus.CounterVec // labels: reason={unavailable,schema,invalid_city,io}
	DatasetCache   *prometheus.CounterVec // labels: result={hit,miss}
	CachedDatasets prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SimulationsTotal,
		m.BuildingsClassified,
		m.ServerRunning,
		m.BatchLevels,
		m.SimulationDuration,
		m.BatchDuration,
		m.Exports,
		m.DatasetsLoaded,
		m.DatasetErrors,
		m.DatasetCache,
		m.CachedDatasets,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SimulationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Total single-level flood classifications.",
		}),
		BuildingsClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buildings_classified_total",
			Help:      "Total building classifications across all levels.",
		}),
		ServerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_running",
			Help:      "1 when the HTTP API is serving, 0 when shut down.",
		}),
		BatchLevels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_levels",
			Help:      "Number of water levels per batch run.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250},
		}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Duration of one classify-and-aggregate pass.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete multi-level batch run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Batch exports by destination and outcome.",
		}, []string{"destination", "outcome"}),
		DatasetsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_loaded_total",
			Help:      "Datasets constructed by source.",
		}, []string{"source"}),
		DatasetErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_errors_total",
			Help:      "Dataset load failures by reason.",
		}, []string{"reason"}),
		DatasetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_total",
			Help:      "Dataset cache lookups by result.",
		}, []string{"result"}),
		CachedDatasets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_datasets",
			Help:      "Datasets currently held in the cache.",
		}),
	}
}
