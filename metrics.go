package battlecard

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes Prometheus metrics for the request lifecycle:
// exchanges, retries, refreshes, coalesced reads, and rate-limit waits. All
// methods are nil-safe so the client can record unconditionally.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	refreshesTotal  *prometheus.CounterVec
	dedupHitsTotal  *prometheus.CounterVec
	rateLimitWaits  prometheus.Counter
	errorsTotal     *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, for callers that scope metrics per client instance.
func NewMetricsCollectorWithRegistry(reg prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlecard_client_requests_total",
				Help: "Total number of dispatched exchanges",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "battlecard_client_request_duration_seconds",
				Help:    "Duration of logical calls, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlecard_client_retries_total",
				Help: "Total number of re-dispatched attempts",
			},
			[]string{"method", "endpoint", "reason"},
		),
		refreshesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlecard_client_token_refreshes_total",
				Help: "Total number of token refresh exchanges",
			},
			[]string{"outcome"},
		),
		dedupHitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlecard_client_dedup_hits_total",
				Help: "Reads served from an exchange already in flight",
			},
			[]string{"endpoint"},
		),
		rateLimitWaits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "battlecard_client_rate_limit_waits_total",
				Help: "Pauses taken to honor a 429 wait hint",
			},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "battlecard_client_errors_total",
				Help: "Envelopes surfaced to callers by kind",
			},
			[]string{"kind"},
		),
	}
}

// RecordRequest records one dispatched exchange.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int) {
	if mc == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(method, strconv.Itoa(statusCode), endpoint).Inc()
}

// RecordDuration records the wall time of a whole logical call.
func (mc *MetricsCollector) RecordDuration(method, endpoint string, d time.Duration) {
	if mc == nil {
		return
	}
	mc.requestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RecordRetry records one re-dispatch and why it happened.
func (mc *MetricsCollector) RecordRetry(method, endpoint, reason string) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, reason).Inc()
}

// RecordRefresh records a refresh exchange outcome.
func (mc *MetricsCollector) RecordRefresh(success bool) {
	if mc == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	mc.refreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordDedupHit records a read joining an exchange already in flight.
func (mc *MetricsCollector) RecordDedupHit(endpoint string) {
	if mc == nil {
		return
	}
	mc.dedupHitsTotal.WithLabelValues(endpoint).Inc()
}

// RecordRateLimitWait records a pause honoring a server wait hint.
func (mc *MetricsCollector) RecordRateLimitWait() {
	if mc == nil {
		return
	}
	mc.rateLimitWaits.Inc()
}

// RecordError records a surfaced envelope by kind.
func (mc *MetricsCollector) RecordError(kind Kind) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(kind)).Inc()
}
