package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records housekeeping job runs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_job_duration_seconds",
		Help:    "Duration of housekeeping jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_job_runs_total",
		Help: "Housekeeping job executions, by job and outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &JobMetrics{duration: duration, runs: runs}
}

// Observe records one run of job.
func (j *JobMetrics) Observe(job string, duration time.Duration, err error) {
	if j == nil || j.runs == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
	j.runs.WithLabelValues(normalizeLabel(job), outcome(err)).Inc()
}

// SessionMetrics tracks open storefront sessions.
type SessionMetrics struct {
	open   prometheus.Gauge
	events *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_sessions_open",
		Help: "Storefront sessions held in memory.",
	})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_session_events_total",
		Help: "Session lifecycle events: opened, rehydrated, closed, expired.",
	}, []string{"event"})
	reg.MustRegister(open, events)
	return &SessionMetrics{open: open, events: events}
}

func (s *SessionMetrics) SetOpen(n int) {
	if s == nil || s.open == nil {
		return
	}
	s.open.Set(float64(n))
}

func (s *SessionMetrics) IncEvent(event string) {
	if s == nil || s.events == nil {
		return
	}
	s.events.WithLabelValues(normalizeLabel(event)).Inc()
}
