package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RecordsFetched    *prometheus.CounterVec // label: source
	RecordsNormalized *prometheus.CounterVec // label: source
	RecordsLoaded     *prometheus.CounterVec // label: source
	RecordsSkipped    *prometheus.CounterVec // labels: source, reason={normalize,geometry,load}
	PipelineRunning   prometheus.Gauge

	GeometryResolved *prometheus.CounterVec // labels: source, strategy

	FetchPageDuration *prometheus.HistogramVec // label: source
	LoadDuration      *prometheus.HistogramVec // label: source
	LoadBatchSize     *prometheus.HistogramVec // label: source
}

// ObserveFetchPage records the duration of one upstream page request. It
// satisfies the fetch adapters' page observer interfaces.
func (m *Metrics) ObserveFetchPage(source string, d time.Duration) {
	m.FetchPageDuration.WithLabelValues(source).Observe(d.Seconds())
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_etl",
			Name:      "records_fetched_total",
			Help:      "Total raw records fetched from upstream APIs.",
		}, []string{"source"}),
		RecordsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_etl",
			Name:      "records_normalized_total",
			Help:      "Total records normalized into the canonical shape.",
		}, []string{"source"}),
		RecordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_etl",
			Name:      "records_loaded_total",
			Help:      "Total records committed to the canonical store.",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_etl",
			Name:      "records_skipped_total",
			Help:      "Records dropped before load, by pipeline stage.",
		}, []string{"source", "reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "civic_etl",
			Name:      "pipeline_running",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		GeometryResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civic_etl",
			Name:      "geometry_resolved_total",
			Help:      "Geometry resolutions by source and winning strategy.",
		}, []string{"source", "strategy"}),
		FetchPageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civic_etl",
			Name:      "fetch_page_duration_seconds",
			Help:      "Duration of a single upstream page request.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civic_etl",
			Name:      "load_duration_seconds",
			Help:      "Duration of a complete stage-and-commit load transaction.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		LoadBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civic_etl",
			Name:      "load_batch_size",
			Help:      "Number of records per load transaction.",
			Buckets:   []float64{1, 10, 100, 500, 1000, 5000, 10000, 50000},
		}, []string{"source"}),
	}

	prometheus.MustRegister(
		m.RecordsFetched,
		m.RecordsNormalized,
		m.RecordsLoaded,
		m.RecordsSkipped,
		m.PipelineRunning,
		m.GeometryResolved,
		m.FetchPageDuration,
		m.LoadDuration,
		m.LoadBatchSize,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsFetched:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_etl", Name: "records_fetched_total"}, []string{"source"}),
		RecordsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_etl", Name: "records_normalized_total"}, []string{"source"}),
		RecordsLoaded:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_etl", Name: "records_loaded_total"}, []string{"source"}),
		RecordsSkipped:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_etl", Name: "records_skipped_total"}, []string{"source", "reason"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "civic_etl", Name: "pipeline_running"}),
		GeometryResolved:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "civic_etl", Name: "geometry_resolved_total"}, []string{"source", "strategy"}),
		FetchPageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "civic_etl", Name: "fetch_page_duration_seconds"}, []string{"source"}),
		LoadDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "civic_etl", Name: "load_duration_seconds"}, []string{"source"}),
		LoadBatchSize:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "civic_etl", Name: "load_batch_size"}, []string{"source"}),
	}
}
