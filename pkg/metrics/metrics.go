package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task queue metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zoneweaver_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneweaver_tasks_running",
			Help: "Number of tasks currently running in-process",
		},
	)

	TasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_tasks_created_total",
			Help: "Total number of tasks created by operation",
		},
		[]string{"operation"},
	)

	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_tasks_completed_total",
			Help: "Total number of tasks completed by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_scheduling_latency_seconds",
			Help:    "Time from tick start to a task being dispatched",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_scheduler_tick_duration_seconds",
			Help:    "Time taken for one scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	CategoryLockWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_category_lock_wait_seconds",
			Help:    "Time a tick observed a category held before skipping its task",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_handler_duration_seconds",
			Help:    "Time taken for a task handler to return, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Command executor metrics
	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_command_duration_seconds",
			Help:    "Time taken for shell commands run by the executor",
			Buckets: prometheus.DefBuckets,
		},
	)

	SlowCommandsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneweaver_slow_commands_total",
			Help: "Total number of commands exceeding the slow-command threshold",
		},
	)

	CommandTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneweaver_command_timeouts_total",
			Help: "Total number of commands killed for exceeding their timeout",
		},
	)

	// HTTP API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_api_requests_total",
			Help: "Total number of API requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Zone-shutdown orchestrator metrics
	OrchestrationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneweaver_orchestration_runs_total",
			Help: "Total number of zone-shutdown orchestration runs by outcome",
		},
		[]string{"outcome"},
	)

	OrchestrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_orchestration_duration_seconds",
			Help:    "Time taken for a full zone-shutdown orchestration run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Retention cleaner metrics
	RetentionDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneweaver_retention_deleted_total",
			Help: "Total number of task rows removed by the retention cleaner",
		},
	)

	RetentionCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zoneweaver_retention_cycle_duration_seconds",
			Help:    "Time taken for one retention cleanup cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Discovery driver metrics
	DiscoveryRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneweaver_discovery_runs_total",
			Help: "Total number of discover tasks enqueued by the discovery driver",
		},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TasksRunning)
	prometheus.MustRegister(TasksCreatedTotal)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(SchedulerTickDuration)
	prometheus.MustRegister(CategoryLockWaitSeconds)
	prometheus.MustRegister(HandlerDuration)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(SlowCommandsTotal)
	prometheus.MustRegister(CommandTimeoutsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(OrchestrationRunsTotal)
	prometheus.MustRegister(OrchestrationDuration)
	prometheus.MustRegister(RetentionDeletedTotal)
	prometheus.MustRegister(RetentionCycleDuration)
	prometheus.MustRegister(DiscoveryRunsTotal)
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
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
