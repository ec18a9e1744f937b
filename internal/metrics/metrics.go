// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the engine publishes. Registering against
// an injected registry keeps tests isolated from the default one.
type Metrics struct {
	ExecutionsStarted   prometheus.Counter
	ExecutionsCompleted prometheus.Counter
	ExecutionsFailed    prometheus.Counter

	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	PollAttempts *prometheus.CounterVec
	QueueDepth   prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExecutionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthome_executions_started_total",
			Help: "Executions accepted for processing.",
		}),
		ExecutionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthome_executions_completed_total",
			Help: "Executions that reached completed.",
		}),
		ExecutionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "synthome_executions_failed_total",
			Help: "Executions that reached failed.",
		}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synthome_jobs_completed_total",
			Help: "Jobs completed, by type and provider.",
		}, []string{"type", "provider"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synthome_jobs_failed_total",
			Help: "Jobs failed, by type and provider.",
		}, []string{"type", "provider"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synthome_job_duration_seconds",
			Help:    "Wall time from claim to terminal status, by type.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"type"}),
		PollAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synthome_poll_attempts_total",
			Help: "Provider status polls issued, by provider.",
		}, []string{"provider"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "synthome_queue_depth",
			Help: "Ready jobs waiting for a worker.",
		}),
	}
}

// NewDefault registers on the process-wide default registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
