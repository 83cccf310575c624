// Package metrics exposes engine activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/codecall/sandbox"
)

// Collector holds the Prometheus metrics for the sandbox engine.
// Uses a custom registry, no global state.
type Collector struct {
	Registry *prometheus.Registry

	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveExecutions  prometheus.Gauge

	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	ProgressTotal prometheus.Counter
}

var _ sandbox.Metrics = (*Collector)(nil)

// New creates a Collector with all metrics registered on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codecall",
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total sandbox executions by outcome.",
		}, []string{"outcome"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codecall",
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Sandbox execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"outcome"}),

		ActiveExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codecall",
			Subsystem: "sandbox",
			Name:      "active_executions",
			Help:      "Number of running sandbox executions.",
		}),

		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codecall",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total tool calls made from sandboxed code.",
		}, []string{"tool", "failed"}),

		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codecall",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		ProgressTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "codecall",
			Subsystem: "sandbox",
			Name:      "progress_entries_total",
			Help:      "Total progress entries emitted by sandboxed code.",
		}),
	}

	reg.MustRegister(
		c.ExecutionsTotal,
		c.ExecutionDuration,
		c.ActiveExecutions,
		c.ToolCallsTotal,
		c.ToolCallDuration,
		c.ProgressTotal,
	)
	return c
}

// ExecutionStarted implements sandbox.Metrics.
func (c *Collector) ExecutionStarted() {
	c.ActiveExecutions.Inc()
}

// ExecutionFinished implements sandbox.Metrics.
func (c *Collector) ExecutionFinished(outcome sandbox.Outcome, seconds float64) {
	c.ActiveExecutions.Dec()
	c.ExecutionsTotal.WithLabelValues(string(outcome)).Inc()
	c.ExecutionDuration.WithLabelValues(string(outcome)).Observe(seconds)
}

// ToolCallFinished implements sandbox.Metrics.
func (c *Collector) ToolCallFinished(path string, failed bool, seconds float64) {
	c.ToolCallsTotal.WithLabelValues(path, strconv.FormatBool(failed)).Inc()
	c.ToolCallDuration.WithLabelValues(path).Observe(seconds)
}

// ProgressEmitted implements sandbox.Metrics.
func (c *Collector) ProgressEmitted() {
	c.ProgressTotal.Inc()
}
