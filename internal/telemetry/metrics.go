// Package telemetry holds the prometheus metrics of the processor and webhook.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "commit_digest"

// Metrics groups the collectors. Each instance registers on its own
// registerer so tests can build as many as they need.
type Metrics struct {
	JobsDispatched   *prometheus.CounterVec
	JobsCompleted    *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	ActiveJobs       prometheus.Gauge
	QueueDepth       *prometheus.GaugeVec
	WebhooksReceived *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		JobsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_dispatched_total", Help: "Jobs claimed and handed to a handler",
		}, []string{"type"}),
		JobsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_completed_total", Help: "Jobs completed successfully",
		}, []string{"type"}),
		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_failed_total", Help: "Job failures by outcome (retry or failed)",
		}, []string{"type", "outcome"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_duration_seconds", Help: "Handler execution time",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"type"}),
		ActiveJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "jobs_active", Help: "Jobs executing in this process",
		}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "jobs_queue_depth", Help: "Jobs in the store by status",
		}, []string{"status"}),
		WebhooksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "webhooks_received_total", Help: "GitHub webhook deliveries by event and result",
		}, []string{"event", "result"}),
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
