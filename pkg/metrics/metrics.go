package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transaction metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchampion_transactions_total",
			Help: "Total number of storage transactions by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	TransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskchampion_transaction_duration_seconds",
			Help:    "Time a storage transaction was held open, by backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	TransactionsBusyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchampion_transactions_busy_total",
			Help: "Total number of Txn calls rejected with ErrBusy, by backend",
		},
		[]string{"backend"},
	)

	// Task set metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskchampion_tasks_total",
			Help: "Total number of tasks in the replica, by backend",
		},
		[]string{"backend"},
	)

	// Operation log metrics
	OperationsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskchampion_operations_appended_total",
			Help: "Total number of operations appended to the log, by backend and kind",
		},
		[]string{"backend", "kind"},
	)

	OperationLogLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskchampion_operation_log_length",
			Help: "Current length of the operation log, by backend",
		},
		[]string{"backend"},
	)

	// Working set metrics
	WorkingSetOccupancy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskchampion_working_set_occupancy",
			Help: "Number of occupied slots in the working set, by backend",
		},
		[]string{"backend"},
	)

	WorkingSetSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskchampion_working_set_size",
			Help: "Length of the working set vector (including empty slots), by backend",
		},
		[]string{"backend"},
	)

	// Sync metrics
	SyncOperationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskchampion_sync_operations_sent_total",
			Help: "Total number of operations sent to a sync server",
		},
	)

	SyncOperationsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskchampion_sync_operations_received_total",
			Help: "Total number of operations received from a sync server",
		},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskchampion_sync_duration_seconds",
			Help:    "Time taken for a sync round trip in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(TransactionDuration)
	prometheus.MustRegister(TransactionsBusyTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(OperationsAppendedTotal)
	prometheus.MustRegister(OperationLogLength)
	prometheus.MustRegister(WorkingSetOccupancy)
	prometheus.MustRegister(WorkingSetSize)
	prometheus.MustRegister(SyncOperationsSentTotal)
	prometheus.MustRegister(SyncOperationsReceivedTotal)
	prometheus.MustRegister(SyncDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
