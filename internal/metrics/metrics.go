// Package metrics exposes Prometheus collectors for the frontier service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	frontierPagesTotal            *prometheus.CounterVec
	frontierBytesTotal            *prometheus.CounterVec
	frontierRewardObserved        prometheus.Histogram
	frontierModelUpdatesTotal     prometheus.Counter
	frontierQueuedEntries         prometheus.Gauge
	frontierDomains               prometheus.Gauge
	frontierRandomPicks           prometheus.Gauge
	frontierSweepDurationSeconds  *prometheus.HistogramVec
	frontierCheckpointSeconds     prometheus.Histogram
	frontierCheckpointFailures    prometheus.Counter
	frontierRecordDropsTotal      prometheus.Counter
	frontierRateLimitDelaySeconds *prometheus.HistogramVec
	frontierRobotsFallbacks       prometheus.Counter
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		frontierPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_pages_total",
				Help: "Total number of completed fetches, labeled by domain and outcome.",
			},
			[]string{"domain", "outcome"},
		)

		frontierBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_bytes_total",
				Help: "Total number of bytes fetched, labeled by domain.",
			},
			[]string{"domain"},
		)

		frontierRewardObserved = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frontier_reward",
				Help:    "Histogram of rewards observed per learning transition.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		)

		frontierModelUpdatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_model_updates_total",
				Help: "Total number of value estimator updates applied.",
			},
		)

		frontierQueuedEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_queued_entries",
				Help: "Number of entries currently queued across all domains.",
			},
		)

		frontierDomains = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_domains",
				Help: "Number of distinct domains seen so far.",
			},
		)

		frontierRandomPicks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_random_picks",
				Help: "Number of pops that took the epsilon exploration branch.",
			},
		)

		frontierSweepDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frontier_sweep_duration_seconds",
				Help:    "Histogram of re-prioritization sweep durations, labeled by scope.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"scope"},
		)

		frontierCheckpointSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frontier_checkpoint_duration_seconds",
				Help:    "Histogram of graph checkpoint durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		)

		frontierCheckpointFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_checkpoint_failures_total",
				Help: "Total number of failed checkpoint attempts.",
			},
		)

		frontierRecordDropsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_record_drops_total",
				Help: "Total number of page records dropped because the recorder was saturated.",
			},
		)

		frontierRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frontier_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		frontierRobotsFallbacks = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_robots_fallbacks_total",
				Help: "Total number of robots.txt probes that degraded to a synthetic allow-all response.",
			},
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one completed fetch.
func ObservePage(domain, outcome string, bytesFetched int) {
	frontierPagesTotal.WithLabelValues(domain, outcome).Inc()
	if bytesFetched > 0 {
		frontierBytesTotal.WithLabelValues(domain).Add(float64(bytesFetched))
	}
}

// ObserveReward records the reward of one learning transition and counts
// the model update.
func ObserveReward(r float64) {
	frontierRewardObserved.Observe(r)
	frontierModelUpdatesTotal.Inc()
}

// SetFrontierGauges refreshes the queue, domain, and exploration gauges.
func SetFrontierGauges(queued, domains, randomPicks int) {
	frontierQueuedEntries.Set(float64(queued))
	frontierDomains.Set(float64(domains))
	frontierRandomPicks.Set(float64(randomPicks))
}

// ObserveSweep records a re-prioritization sweep. Scope is "global" for
// the periodic all-domain pass and "domain" for immediate single-domain
// passes.
func ObserveSweep(scope string, duration time.Duration) {
	frontierSweepDurationSeconds.WithLabelValues(scope).Observe(duration.Seconds())
}

// ObserveCheckpoint records a checkpoint attempt.
func ObserveCheckpoint(duration time.Duration, err error) {
	frontierCheckpointSeconds.Observe(duration.Seconds())
	if err != nil {
		frontierCheckpointFailures.Inc()
	}
}

// ObserveRecordDrop counts a page record dropped under backpressure.
func ObserveRecordDrop() {
	frontierRecordDropsTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	frontierRateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts a robots.txt probe that gave up and served
// a synthetic allow-all response.
func ObserveRobotsFallback() {
	frontierRobotsFallbacks.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
