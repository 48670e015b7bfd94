// Package metrics defines the Prometheus collectors for the worker and the
// webhook pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Worker
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "worker_jobs_total", Help: "Job outcomes."},
		[]string{"outcome"}, // success | failed | retried | expired | parse_error
	)
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "End-to-end job processing latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..~40s
		},
	)
	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "worker_jobs_inflight", Help: "Jobs being processed in this process."},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "worker_queue_depth", Help: "Jobs waiting on the outbound list."},
	)
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "whatsapp_dispatch_total", Help: "Delivery client outcomes."},
		[]string{"outcome"}, // sent | retryable_error | permanent_error
	)

	// Webhook
	WebhookReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook POST deliveries received."},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_events_total", Help: "Webhook sub-event outcomes."},
		[]string{"kind", "result"}, // kind: message | status | ignored; result: ok | duplicate | dropped | error
	)
	WebhookErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_processing_errors_total", Help: "Webhook processing failures."},
	)
)

// MustRegister registers the default and application collectors.
func MustRegister() {
	prometheus.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		JobsProcessed, JobDuration, JobsInFlight, QueueDepth, DispatchTotal,
		WebhookReceived, WebhookEvents, WebhookErrors,
	)
}
