package provider

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterscaler",
			Subsystem: "provider",
			Name:      "api_calls_total",
			Help:      "Total number of provider calls by provider, operation and result",
		},
		[]string{"provider", "operation", "result"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clusterscaler",
			Subsystem: "provider",
			Name:      "api_latency_seconds",
			Help:      "Latency of provider calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"provider", "operation"},
	)
)

func init() {
	metrics.Registry.MustRegister(apiCallsTotal, apiLatency)
}

// Instrumented records call counts and latency per operation.
type Instrumented struct {
	next Provider
	name string
}

// WithMetrics wraps p, labelling its metrics with name.
func WithMetrics(p Provider, name string) *Instrumented {
	return &Instrumented{next: p, name: name}
}

func (m *Instrumented) observe(op string, start time.Time, err error) {
	result := "success"
	switch {
	case err == nil:
	case IsNotFound(err):
		result = "not_found"
	case IsTransient(err):
		result = "transient"
	default:
		result = "error"
	}
	apiCallsTotal.WithLabelValues(m.name, op, result).Inc()
	apiLatency.WithLabelValues(m.name, op).Observe(time.Since(start).Seconds())
}

func (m *Instrumented) ListNodes(ctx context.Context, filter map[string]string) (nodes []Node, err error) {
	defer func(start time.Time) { m.observe("list_nodes", start, err) }(time.Now())
	return m.next.ListNodes(ctx, filter)
}

func (m *Instrumented) CreateNodes(ctx context.Context, req LaunchRequest) (ids []string, err error) {
	defer func(start time.Time) { m.observe("create_nodes", start, err) }(time.Now())
	return m.next.CreateNodes(ctx, req)
}

func (m *Instrumented) TerminateNode(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { m.observe("terminate_node", start, err) }(time.Now())
	return m.next.TerminateNode(ctx, id)
}

func (m *Instrumented) SetNodeTags(ctx context.Context, id string, tags map[string]string) (err error) {
	defer func(start time.Time) { m.observe("set_node_tags", start, err) }(time.Now())
	return m.next.SetNodeTags(ctx, id, tags)
}

func (m *Instrumented) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (res CommandResult, err error) {
	defer func(start time.Time) { m.observe("run_command", start, err) }(time.Now())
	return m.next.RunCommand(ctx, id, command, timeout)
}

func (m *Instrumented) IsRunning(ctx context.Context, id string) (running bool, err error) {
	defer func(start time.Time) { m.observe("is_running", start, err) }(time.Now())
	return m.next.IsRunning(ctx, id)
}

// Wrap applies the standard decorator stack: metrics outermost, then rate
// limiting, then retries closest to the backend.
func Wrap(p Provider, name string, qps float64, burst, retries int, initialDelay time.Duration) Provider {
	return WithMetrics(WithRateLimit(WithRetries(p, retries, initialDelay), qps, burst), name)
}
