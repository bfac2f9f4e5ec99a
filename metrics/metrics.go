// Package metrics is the Prometheus implementation of fetch.Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// durationBuckets covers small tarballs on a warm registry up to large
// artifacts that take minutes.
var durationBuckets = []float64{
	0.05, // 50ms - cached or tiny artifacts
	0.1,
	0.5,
	1,
	5,
	15,
	60,  // 1m - large artifacts or a backoff wait
	300, // 5m - default timeout
}

// Fetch records pipeline activity.
type Fetch struct {
	attempts         *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	pipelines        *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	attemptsPerFetch prometheus.Histogram
	bytes            prometheus.Counter
	shared           prometheus.Counter
}

// New registers the fetch metrics with reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Fetch {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Fetch{
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarfetch_attempts_total",
				Help: "Total number of transfer attempts by outcome",
			},
			[]string{"outcome"},
		),
		attemptDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarfetch_attempt_duration_seconds",
				Help:    "Duration of single transfer attempts in seconds",
				Buckets: durationBuckets,
			},
			[]string{"outcome"},
		),
		pipelines: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tarfetch_fetches_total",
				Help: "Total number of completed fetch pipelines by outcome",
			},
			[]string{"outcome"},
		),
		pipelineDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tarfetch_fetch_duration_seconds",
				Help:    "Duration of fetch pipelines including retries in seconds",
				Buckets: durationBuckets,
			},
			[]string{"outcome"},
		),
		attemptsPerFetch: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tarfetch_fetch_attempts",
				Help:    "Distribution of attempts made per fetch pipeline",
				Buckets: []float64{1, 2, 3, 5, 10},
			},
		),
		bytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tarfetch_staged_bytes_total",
				Help: "Total bytes staged from successful transfers",
			},
		),
		shared: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tarfetch_shared_results_total",
				Help: "Fetch calls served by a pipeline another caller started",
			},
		),
	}
}

func (m *Fetch) ObserveAttempt(outcome string, d time.Duration) {
	m.attempts.WithLabelValues(outcome).Inc()
	m.attemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Fetch) ObservePipeline(outcome string, attempts int, d time.Duration) {
	m.pipelines.WithLabelValues(outcome).Inc()
	m.pipelineDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if attempts > 0 {
		m.attemptsPerFetch.Observe(float64(attempts))
	}
}

func (m *Fetch) AddBytes(n int64) {
	if n > 0 {
		m.bytes.Add(float64(n))
	}
}

func (m *Fetch) IncShared() {
	m.shared.Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
