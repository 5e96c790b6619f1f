package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records the quantity edit protocol of the cart and build screens.
type CartMetrics struct {
	edits           *prometheus.CounterVec
	commits         *prometheus.CounterVec
	commitDuration  *prometheus.HistogramVec
	reconciliations *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	edits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_edits_total",
		Help: "Quantity edits evaluated locally, by screen and policy reason.",
	}, []string{"screen", "reason"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_commits_total",
		Help: "Mutations sent to the backend, by screen and outcome.",
	}, []string{"screen", "outcome"})
	commitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_cart_commit_duration_seconds",
		Help:    "Duration of backend mutations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"screen"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_reconciliations_total",
		Help: "Full reloads from the backend, by screen and result.",
	}, []string{"screen", "result"})
	reg.MustRegister(edits, commits, commitDuration, reconciliations)
	return &CartMetrics{
		edits:           edits,
		commits:         commits,
		commitDuration:  commitDuration,
		reconciliations: reconciliations,
	}
}

func (c *CartMetrics) IncEdit(screen, reason string) {
	if c == nil || c.edits == nil {
		return
	}
	c.edits.WithLabelValues(normalizeLabel(screen), normalizeLabel(reason)).Inc()
}

// ObserveCommit records one backend mutation; err decides the outcome label.
func (c *CartMetrics) ObserveCommit(screen string, duration time.Duration, err error) {
	if c == nil || c.commits == nil {
		return
	}
	c.commits.WithLabelValues(normalizeLabel(screen), outcome(err)).Inc()
	c.commitDuration.WithLabelValues(normalizeLabel(screen)).Observe(duration.Seconds())
}

func (c *CartMetrics) IncReconciliation(screen string, err error) {
	if c == nil || c.reconciliations == nil {
		return
	}
	c.reconciliations.WithLabelValues(normalizeLabel(screen), outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
