package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// These are registered with the default Prometheus registry but never
// exposed over HTTP — monitoring exporters are an explicit non-goal,
// so they exist purely for in-process inspection (tests, pprof-style
// debug dumps) rather than scraping.
var (
	FileSystemsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mgm_filesystems_total",
			Help: "Total number of registered file systems by config status",
		},
		[]string{"config"},
	)

	PlacementLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mgm_placement_latency_seconds",
			Help:    "Time taken to place a new file's replicas",
			Buckets: prometheus.DefBuckets,
		},
	)

	PlacementFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mgm_placement_failures_total",
			Help: "Total number of placement attempts that found no eligible file system",
		},
	)

	AccessLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mgm_access_latency_seconds",
			Help:    "Time taken to select a replica to read",
			Buckets: prometheus.DefBuckets,
		},
	)

	CapabilitiesMintedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgm_capabilities_minted_total",
			Help: "Total number of capabilities minted by access kind",
		},
		[]string{"access"},
	)

	CommitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgm_commit_failures_total",
			Help: "Total number of commit-protocol failures by error kind",
		},
		[]string{"kind"},
	)

	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mgm_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mgm_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	EngineCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mgm_engine_cycle_duration_seconds",
			Help:    "Duration of one background engine work cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)

	EngineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgm_engine_errors_total",
			Help: "Total number of background engine cycle failures",
		},
		[]string{"engine"},
	)

	ProcCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgm_proc_commands_total",
			Help: "Total number of proc commands executed by command name and outcome",
		},
		[]string{"command", "outcome"},
	)

	ReplicationApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mgm_replication_apply_duration_seconds",
			Help:    "Time taken for a raft Apply to commit through the replicated log",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		FileSystemsTotal,
		PlacementLatency,
		PlacementFailuresTotal,
		AccessLatency,
		CapabilitiesMintedTotal,
		CommitFailuresTotal,
		RaftLeader,
		RaftAppliedIndex,
		EngineCycleDuration,
		EngineErrorsTotal,
		ProcCommandsTotal,
		ReplicationApplyDuration,
	)
}

// Timer is a helper for timing operations (teacher's pattern, kept
// verbatim: pkg/metrics/metrics.go).
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
