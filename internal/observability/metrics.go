package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// publisher.
type Metrics struct {
	CyclesTotal      prometheus.Counter
	CyclesFailed     prometheus.Counter
	PublisherRunning prometheus.Gauge

	// Per-model publish metrics.
	RunsPublished  *prometheus.CounterVec // labels: model
	RunsSkipped    *prometheus.CounterVec // labels: model, reason={current,not_found}
	ModelFailures  *prometheus.CounterVec // labels: model, stage={discover,fetch,decode,render,publish}
	LastRunAge     *prometheus.GaugeVec   // labels: model; seconds since the published cycle
	FetchBytes     *prometheus.CounterVec // labels: model, source={s3,nomads}
	SourceFallback *prometheus.CounterVec // labels: model

	// Stage duration metrics.
	FetchDuration   prometheus.Histogram
	DecodeDuration  prometheus.Histogram
	RenderDuration  prometheus.Histogram
	PublishDuration prometheus.Histogram

	KafkaNotifications prometheus.Counter
	KafkaErrors        prometheus.Counter
}

// NewMetrics creates and registers all publisher metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CyclesFailed,
		m.PublisherRunning,
		m.RunsPublished,
		m.RunsSkipped,
		m.ModelFailures,
		m.LastRunAge,
		m.FetchBytes,
		m.SourceFallback,
		m.FetchDuration,
		m.DecodeDuration,
		m.RenderDuration,
		m.PublishDuration,
		m.KafkaNotifications,
		m.KafkaErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	const ns = "model_imagery"
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cycles_total",
			Help:      "Total publish cycles attempted.",
		}),
		CyclesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cycles_failed_total",
			Help:      "Publish cycles in which every model failed.",
		}),
		PublisherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "publisher_running",
			Help:      "1 when the publish loop is active, 0 when shut down.",
		}),
		RunsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "runs_published_total",
			Help:      "Images published by model.",
		}, []string{"model"}),
		RunsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "runs_skipped_total",
			Help:      "Models skipped in a cycle by reason.",
		}, []string{"model", "reason"}),
		ModelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "model_failures_total",
			Help:      "Per-model failures by pipeline stage.",
		}, []string{"model", "stage"}),
		LastRunAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "last_run_age_seconds",
			Help:      "Age of the most recently published cycle per model.",
		}, []string{"model"}),
		FetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fetch_bytes_total",
			Help:      "GRIB bytes fetched by model and source.",
		}, []string{"model", "source"}),
		SourceFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_fallback_total",
			Help:      "Cycles where the S3 source failed and NOMADS was used.",
		}, []string{"model"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of inventory and field fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "decode_duration_seconds",
			Help:      "Duration of GRIB decoding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "render_duration_seconds",
			Help:      "Duration of sector rendering and PNG encoding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "publish_duration_seconds",
			Help:      "Duration of atomic site installation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		KafkaNotifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "kafka_notifications_total",
			Help:      "Publish notifications written to Kafka.",
		}),
		KafkaErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "kafka_errors_total",
			Help:      "Failed Kafka notification writes.",
		}),
	}
}
