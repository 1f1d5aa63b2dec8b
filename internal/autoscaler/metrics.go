package autoscaler

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/imamik/clusterscaler/internal/scheduler"
	"github.com/imamik/clusterscaler/internal/state"
)

var (
	// Reconciliation metrics
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterscaler",
			Subsystem: "reconciler",
			Name:      "ticks_total",
			Help:      "Total number of reconcile ticks by result",
		},
		[]string{"cluster", "result"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clusterscaler",
			Subsystem: "reconciler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of reconcile ticks in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"cluster"},
	)

	upscalingThrottledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterscaler",
			Subsystem: "reconciler",
			Name:      "upscaling_throttled_total",
			Help:      "Total number of ticks whose launches were limited by upscaling_speed",
		},
		[]string{"cluster"},
	)

	// Node metrics
	nodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterscaler",
			Subsystem: "cluster",
			Name:      "nodes",
			Help:      "Number of tracked nodes by node type and status",
		},
		[]string{"cluster", "node_type", "status"},
	)

	nodesTarget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterscaler",
			Subsystem: "cluster",
			Name:      "nodes_target",
			Help:      "Target number of nodes by node type after the last tick",
		},
		[]string{"cluster", "node_type"},
	)

	pendingDemand = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterscaler",
			Subsystem: "cluster",
			Name:      "pending_demand_units",
			Help:      "Demand units blocked by max_workers limits",
		},
		[]string{"cluster"},
	)

	infeasibleDemand = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterscaler",
			Subsystem: "cluster",
			Name:      "infeasible_demand_units",
			Help:      "Demand units no node type can satisfy",
		},
		[]string{"cluster"},
	)

	// Workflow metrics
	nodesLaunchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterscaler",
			Subsystem: "workflow",
			Name:      "nodes_launched_total",
			Help:      "Total number of nodes created by node type",
		},
		[]string{"cluster", "node_type"},
	)

	nodesTerminatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterscaler",
			Subsystem: "workflow",
			Name:      "nodes_terminated_total",
			Help:      "Total number of nodes removed by node type and reason",
		},
		[]string{"cluster", "node_type", "reason"},
	)

	failedUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterscaler",
			Subsystem: "workflow",
			Name:      "failed_updates_total",
			Help:      "Total number of failed node workflows by node type and step",
		},
		[]string{"cluster", "node_type", "step"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		reconcileTotal,
		reconcileDuration,
		upscalingThrottledTotal,
		nodesTotal,
		nodesTarget,
		pendingDemand,
		infeasibleDemand,
		nodesLaunchedTotal,
		nodesTerminatedTotal,
		failedUpdatesTotal,
	)
}

// recordTick records a tick result.
func recordTick(cluster, result string, duration float64) {
	reconcileTotal.WithLabelValues(cluster, result).Inc()
	reconcileDuration.WithLabelValues(cluster).Observe(duration)
}

func recordLaunch(cluster, nodeType string, n int) {
	if n > 0 {
		nodesLaunchedTotal.WithLabelValues(cluster, nodeType).Add(float64(n))
	}
}

func recordTermination(cluster, nodeType, reason string) {
	nodesTerminatedTotal.WithLabelValues(cluster, nodeType, reason).Inc()
}

func recordFailedUpdate(cluster, nodeType, step string) {
	failedUpdatesTotal.WithLabelValues(cluster, nodeType, step).Inc()
}

// observe publishes the gauges of the tick that just ran.
func (r *Reconciler) observe(res scheduler.Result) {
	cluster := r.cfg.ClusterName

	counts := make(map[[2]string]int)
	for _, rec := range r.store.List() {
		counts[[2]string{rec.NodeType, string(rec.Status)}]++
	}
	nodesTotal.DeletePartialMatch(prometheus.Labels{"cluster": cluster})
	for _, spec := range r.catalog.All() {
		for _, status := range state.AllStatuses() {
			nodesTotal.WithLabelValues(cluster, spec.Name, string(status)).Set(float64(counts[[2]string{spec.Name, string(status)}]))
		}
		nodesTarget.WithLabelValues(cluster, spec.Name).Set(float64(res.Targets[spec.Name]))
	}

	pending, infeasible := 0, 0
	for _, d := range res.Pending {
		pending += d.Count
	}
	for _, d := range res.Infeasible {
		infeasible += d.Count
	}
	pendingDemand.WithLabelValues(cluster).Set(float64(pending))
	infeasibleDemand.WithLabelValues(cluster).Set(float64(infeasible))
	if res.Throttled {
		upscalingThrottledTotal.WithLabelValues(cluster).Inc()
	}
}
