package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics records calls made to the storefront REST backend.
type BackendMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	refresh  *prometheus.CounterVec
}

func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	if reg == nil {
		return &BackendMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_backend_requests_total",
		Help: "Backend requests by endpoint and status code (0 for transport errors).",
	}, []string{"endpoint", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_backend_request_duration_seconds",
		Help:    "Backend request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_token_refresh_total",
		Help: "Access token refresh attempts by trigger and outcome.",
	}, []string{"trigger", "outcome"})
	reg.MustRegister(requests, duration, refresh)
	return &BackendMetrics{requests: requests, duration: duration, refresh: refresh}
}

func (b *BackendMetrics) ObserveRequest(endpoint string, status int, duration time.Duration) {
	if b == nil || b.requests == nil {
		return
	}
	b.requests.WithLabelValues(normalizeLabel(endpoint), strconv.Itoa(status)).Inc()
	b.duration.WithLabelValues(normalizeLabel(endpoint)).Observe(duration.Seconds())
}

// IncRefresh counts a token refresh. trigger is "proactive" or "unauthorized".
func (b *BackendMetrics) IncRefresh(trigger string, err error) {
	if b == nil || b.refresh == nil {
		return
	}
	b.refresh.WithLabelValues(normalizeLabel(trigger), outcome(err)).Inc()
}
