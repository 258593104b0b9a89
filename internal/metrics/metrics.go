// Package metrics exposes Prometheus collectors for the scoring service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestBatchesTotal          *prometheus.CounterVec
	ingestPagesTotal            *prometheus.CounterVec
	scoringIssuesTotal          *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	httpRequestsInFlight        prometheus.Gauge
	jobTransitionsTotal         *prometheus.CounterVec
	enrichmentTasksTotal        *prometheus.CounterVec
	enrichmentActiveWorkers     prometheus.Gauge
	llmRateLimitDelaySeconds    prometheus.Histogram
	competitorSweepsTotal       prometheus.Counter
	competitorBenchmarksTotal   *prometheus.CounterVec
	competitorEventsTotal       *prometheus.CounterVec
	benchmarkProbeTimeoutsTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_batches_total",
				Help: "Total number of ingestion batches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_pages_total",
				Help: "Total number of ingested pages, labeled by scoring result.",
			},
			[]string{"result"},
		)

		scoringIssuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoring_issues_total",
				Help: "Total number of issues emitted, labeled by category and severity.",
			},
			[]string{"category", "severity"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		httpRequestsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of API requests currently being served.",
			},
		)

		jobTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_job_transitions_total",
				Help: "Total number of crawl job status transitions, labeled by target status.",
			},
			[]string{"status"},
		)

		enrichmentTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_tasks_total",
				Help: "Total number of enrichment tasks processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		enrichmentActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrichment_active_workers",
				Help: "Number of workers currently processing an enrichment task.",
			},
		)

		llmRateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrichment_llm_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations before LLM calls.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		competitorSweepsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "competitor_sweeps_total",
				Help: "Total number of competitor monitoring sweeps run.",
			},
		)

		competitorBenchmarksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "competitor_benchmarks_total",
				Help: "Total number of competitor benchmarks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		competitorEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "competitor_events_total",
				Help: "Total number of competitor events emitted, labeled by type and severity.",
			},
			[]string{"event_type", "severity"},
		)

		benchmarkProbeTimeoutsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "benchmark_probe_timeouts_total",
				Help: "Total benchmark probe requests that timed out.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBatch records an ingestion batch outcome (ok, invalid, not_found, error).
func ObserveBatch(outcome string) {
	Init()
	ingestBatchesTotal.WithLabelValues(outcome).Inc()
}

// ObservePages records scored and errored page counts from one batch.
func ObservePages(scored, errored int) {
	Init()
	if scored > 0 {
		ingestPagesTotal.WithLabelValues("scored").Add(float64(scored))
	}
	if errored > 0 {
		ingestPagesTotal.WithLabelValues("errored").Add(float64(errored))
	}
}

// ObserveIssue increments the issue counter.
func ObserveIssue(category, severity string) {
	Init()
	scoringIssuesTotal.WithLabelValues(category, severity).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTransition increments the job transition counter for the target status.
func ObserveTransition(status string) {
	Init()
	jobTransitionsTotal.WithLabelValues(status).Inc()
}

// ObserveEnrichment records an enrichment task outcome.
func ObserveEnrichment(outcome string) {
	Init()
	enrichmentTasksTotal.WithLabelValues(outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	enrichmentActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	enrichmentActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	llmRateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveSweep records one competitor sweep and its per-competitor outcomes.
func ObserveSweep(processed, errored int) {
	Init()
	competitorSweepsTotal.Inc()
	if processed > 0 {
		competitorBenchmarksTotal.WithLabelValues("ok").Add(float64(processed))
	}
	if errored > 0 {
		competitorBenchmarksTotal.WithLabelValues("error").Add(float64(errored))
	}
}

// ObserveCompetitorEvent increments the competitor event counter.
func ObserveCompetitorEvent(eventType, severity string) {
	Init()
	competitorEventsTotal.WithLabelValues(eventType, severity).Inc()
}

// ObserveProbeTimeout increments the benchmark probe timeout counter.
func ObserveProbeTimeout() {
	Init()
	benchmarkProbeTimeoutsTotal.Inc()
}
