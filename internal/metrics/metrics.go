// Package metrics registers the Prometheus series the orchestration engine
// exposes for its own operations, registered through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsPrefix   = "hailstorm_"
	ProjectLabel    = "project_code"
	ClusterKindLabel = "cluster_kind"
	CommandLabel    = "command"
	AgentTypeLabel  = "agent_type"
)

var (
	ActiveAgentsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricsPrefix + "active_load_agents",
			Help: "Number of active load agents by project and type",
		},
		[]string{ProjectLabel, AgentTypeLabel},
	)

	CycleDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricsPrefix + "cycle_duration_seconds",
			Help:    "Duration of a completed execution cycle from start to stop/abort",
			Buckets: prometheus.ExponentialBuckets(30, 2, 12),
		},
		[]string{ProjectLabel},
	)

	CommandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricsPrefix + "coordinator_command_duration_seconds",
			Help:    "Duration of one Project Coordinator command invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{ProjectLabel, CommandLabel},
	)

	CommandFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricsPrefix + "coordinator_command_failures_total",
			Help: "Count of Project Coordinator commands that returned an error",
		},
		[]string{ProjectLabel, CommandLabel},
	)

	RemoteCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricsPrefix + "remote_call_duration_seconds",
			Help:    "Duration of one SSH/SFTP call made by the Remote Executor",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	ClusterSetupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricsPrefix + "cluster_setup_failures_total",
			Help: "Count of cluster backend Setup failures",
		},
		[]string{ProjectLabel, ClusterKindLabel},
	)
)
