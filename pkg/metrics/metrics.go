package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks jobs waiting behind the rate limit
	// A steadily growing value means producers outpace the provider interval
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notify_queue_depth",
		Help: "Current number of pending jobs in the outbound notification queue",
	})

	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_jobs_enqueued_total",
		Help: "Total number of jobs accepted by the outbound notification queue",
	})

	// JobsProcessed labels: status = success, failed
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_jobs_processed_total",
		Help: "Total number of jobs executed by the drain loop",
	}, []string{"status"})

	// JobDuration excludes the inter-job delay
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notify_job_duration_seconds",
		Help:    "Time spent executing a single notification job",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	DeadLetters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notify_dead_letters",
		Help: "Failed jobs currently retained in the dead-letter list",
	})

	// SendAttempts labels: provider, status = success, error
	SendAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_send_attempts_total",
		Help: "Individual provider send attempts, including retries",
	}, []string{"provider", "status"})

	// StorageOperations labels: op = select, insert, update, delete; status = success, error
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_operations_total",
		Help: "Data access operations executed against the relational store",
	}, []string{"op", "status"})

	StorageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storage_operation_duration_seconds",
		Help:    "Latency of data access operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// IntakeMessages labels: status = handled, malformed, rejected, requeued, unroutable
	IntakeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_messages_total",
		Help: "Notification requests consumed from the broker",
	}, []string{"status"})

	// HealthStatus labels: link = publisher, intake. 1 while that broker link is up
	HealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notifier_healthy",
		Help: "Current health status of each broker link (1 for healthy, 0 for unhealthy)",
	}, []string{"link"})
)
