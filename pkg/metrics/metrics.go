package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records metadata for scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful cron job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed cron job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &CronJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// DispatchMetrics tracks webhook dispatch outcomes per provider/event.
type DispatchMetrics struct {
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	queued    prometheus.Gauge
}

// NewDispatchMetrics registers the webhook dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed_total",
		Help: "Webhook logs processed successfully.",
	}, []string{"provider", "event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failed_total",
		Help: "Webhook logs whose handler returned an error.",
	}, []string{"provider", "event_type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_dispatch_duration_seconds",
		Help:    "Duration of a single webhook dispatch in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	queued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_queue_depth",
		Help: "Webhook logs waiting in the in-process dispatch queue.",
	})
	reg.MustRegister(processed, failed, duration, queued)
	return &DispatchMetrics{
		processed: processed,
		failed:    failed,
		duration:  duration,
		queued:    queued,
	}
}

// IncProcessed counts a successful dispatch.
func (d *DispatchMetrics) IncProcessed(provider, eventType string) {
	if d == nil || d.processed == nil {
		return
	}
	d.processed.WithLabelValues(normalizeLabel(provider), normalizeLabel(eventType)).Inc()
}

// IncFailed counts a dispatch whose handler errored.
func (d *DispatchMetrics) IncFailed(provider, eventType string) {
	if d == nil || d.failed == nil {
		return
	}
	d.failed.WithLabelValues(normalizeLabel(provider), normalizeLabel(eventType)).Inc()
}

// ObserveDuration records how long a dispatch took.
func (d *DispatchMetrics) ObserveDuration(provider string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// SetQueueDepth publishes the current queue backlog.
func (d *DispatchMetrics) SetQueueDepth(depth int) {
	if d == nil || d.queued == nil {
		return
	}
	d.queued.Set(float64(depth))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
