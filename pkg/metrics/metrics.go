package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduler metrics
	SweepDuration prometheus.Histogram
	JobsEnqueued  prometheus.Counter
	JobsDeduped   prometheus.Counter
	JobsCancelled prometheus.Counter
	SweepErrors   prometheus.Counter

	// Escalation metrics
	JobsFired      *prometheus.CounterVec
	MissedRecorded prometheus.Counter
	RelativeAlerts prometheus.Counter

	// Notification metrics
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	EndpointsPruned     prometheus.Counter

	// Sync metrics
	SyncItemsAccepted prometheus.Counter
	SyncItemsRejected prometheus.Counter
	SyncBatchSize     prometheus.Histogram
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent materializing reminder jobs per sweep",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		JobsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_jobs_enqueued_total",
			Help:      "Total number of escalation jobs submitted to the queue",
		}),
		JobsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_jobs_deduplicated_total",
			Help:      "Total number of duplicate job submissions ignored by the queue",
		}),
		JobsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_jobs_cancelled_total",
			Help:      "Total number of jobs withdrawn after acknowledgment",
		}),
		SweepErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Total number of per-medication failures during sweeps",
		}),
		JobsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_jobs_fired_total",
			Help:      "Total number of escalation jobs processed, by tier",
		}, []string{"tier"}),
		MissedRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missed_doses_recorded_total",
			Help:      "Total number of missed dose events synthesized at the final tier",
		}),
		RelativeAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relative_alerts_total",
			Help:      "Total number of relative-facing alerts dispatched",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications delivered to endpoints",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of endpoint deliveries that failed",
		}),
		EndpointsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoints_pruned_total",
			Help:      "Total number of permanently invalid endpoints removed",
		}),
		SyncItemsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_accepted_total",
			Help:      "Total number of offline log items merged into the server log",
		}),
		SyncItemsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_rejected_total",
			Help:      "Total number of offline log items rejected per item",
		}),
		SyncBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_batch_size",
			Help:      "Distribution of offline sync batch sizes",
			Buckets:   []float64{1, 5, 10, 25, 50, 75, 100},
		}),
	}
}
