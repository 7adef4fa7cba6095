package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resource tree metrics.
	ResourceNodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtrm_resource_nodes_total",
			Help: "Total number of registered resource nodes by type",
		},
		[]string{"type"},
	)

	ResourceUsedRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtrm_resource_used_ratio",
			Help: "Fraction of SYSTEM_VIEW capacity currently used, by resource path",
		},
		[]string{"path"},
	)

	// Workload registries.
	SchedulablesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtrm_schedulables_total",
			Help: "Total number of tracked schedulables by kind and state",
		},
		[]string{"kind", "state"},
	)

	// Scheduler manager metrics (spec.md §4.6).
	SchedCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtrm_sched_cycles_total",
			Help: "Total number of scheduler manager cycles run",
		},
	)

	SchedCycleOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtrm_sched_cycle_outcome_total",
			Help: "Scheduler manager cycle outcomes (noop, done, failed, delayed)",
		},
		[]string{"outcome"},
	)

	SchedCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rtrm_sched_cycle_duration_seconds",
			Help:    "Time taken by one scheduler manager cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Synchronisation manager metrics (spec.md §4.7).
	SyncTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtrm_sync_transitions_total",
			Help: "Total number of schedulables driven through each sync flavour",
		},
		[]string{"sync_state"},
	)

	SyncMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtrm_sync_miss_total",
			Help: "Total number of agent timeouts/write errors during a sync phase",
		},
	)

	SyncSessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rtrm_sync_session_duration_seconds",
			Help:    "Time taken by one synchronisation session (sync_start..commit/abort)",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncSessionsAbortedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rtrm_sync_sessions_aborted_total",
			Help: "Total number of synchronisation sessions that ended in Aborted",
		},
	)

	// Event loop metrics (spec.md §4.8).
	EventsNotifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtrm_events_notified_total",
			Help: "Total number of notify_event calls by event type",
		},
		[]string{"event"},
	)

	// Workload-agent channel metrics (spec.md §6.2).
	AgentRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtrm_agent_rpc_duration_seconds",
			Help:    "Workload-agent RPC round-trip duration by message kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		ResourceNodesTotal,
		ResourceUsedRatio,
		SchedulablesTotal,
		SchedCyclesTotal,
		SchedCycleOutcomeTotal,
		SchedCycleDuration,
		SyncTransitionsTotal,
		SyncMissTotal,
		SyncSessionDuration,
		SyncSessionsAbortedTotal,
		EventsNotifiedTotal,
		AgentRPCDuration,
	)
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
