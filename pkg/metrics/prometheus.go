package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketbrief"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	priceSource      *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	feedFetches      *prometheus.CounterVec
	headlines        prometheus.Histogram
	modelAttempts    *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	runs             *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder's collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		priceSource: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_source_total",
				Help:      "Snapshots produced per price source",
			},
			[]string{"source"},
		),
		providerFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_provider_failures_total",
				Help:      "Failed price provider calls",
			},
			[]string{"provider"},
		),
		feedFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_fetches_total",
				Help:      "Feed fetches by host and result",
			},
			[]string{"host", "result"},
		),
		headlines: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "headlines_per_run",
				Help:      "Headlines collected per run after merge",
				Buckets:   []float64{0, 1, 3, 5, 10, 15, 25, 50},
			},
		),
		modelAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_attempts_total",
				Help:      "Generation attempts by model and result",
			},
			[]string{"model", "result"},
		),
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Delivery attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs by status and failed stage",
			},
			[]string{"status", "stage"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_price",
				Help:      "Last resolved price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of pipeline operations in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"route", "method", "class"},
		),
	}
}

func (r *Recorder) RecordPriceSource(source string) {
	r.priceSource.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordProviderFailure(provider string) {
	r.providerFailures.WithLabelValues(provider).Inc()
}

func (r *Recorder) RecordFeedResult(host string, ok bool) {
	r.feedFetches.WithLabelValues(host, result(ok)).Inc()
}

func (r *Recorder) RecordHeadlines(n int) {
	r.headlines.Observe(float64(n))
}

func (r *Recorder) RecordModelAttempt(model, outcome string) {
	r.modelAttempts.WithLabelValues(model, outcome).Inc()
}

func (r *Recorder) RecordDelivery(kind string, ok bool) {
	r.deliveries.WithLabelValues(kind, result(ok)).Inc()
}

func (r *Recorder) RecordRun(status, stage string) {
	r.runs.WithLabelValues(status, stage).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordHTTPRequest is used by the HTTP metrics middleware.
func (r *Recorder) RecordHTTPRequest(route, method, status, class string, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method, class).Observe(d.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Nop discards everything. Useful for tests and one-shot CLI runs.
type Nop struct{}

func (Nop) RecordPriceSource(string) {}
func (Nop) RecordProviderFailure(string) {}
func (Nop) RecordFeedResult(string, bool) {}
func (Nop) RecordHeadlines(int) {}
func (Nop) RecordModelAttempt(string, string) {}
func (Nop) RecordDelivery(string, bool) {}
func (Nop) RecordRun(string, string) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, time.Duration) {}
func (Nop) RecordHTTPRequest(string, string, string, string, time.Duration) {}
