// Package metrics registers the control plane's Prometheus collectors and
// serves them for scraping, following original_source's metrics.rs
// (a lazy_static Registry + IntCounter gathered via a TextEncoder) —
// reimplemented with client_golang's promauto/promhttp idiom instead of a
// hand-rolled gather function, since that's the ecosystem way in Go.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triageops/controlplane/internal/model"
)

// Registry holds every collector the control plane exposes at /metrics.
type Registry struct {
	reg *prometheus.Registry

	AlertsReceivedTotal   *prometheus.CounterVec
	WorkflowRunsTotal     *prometheus.CounterVec
	AgentIterationsTotal  prometheus.Counter
	ToolInvocationsTotal  *prometheus.CounterVec
	SinkDeliveriesTotal   *prometheus.CounterVec
	QueueDepth            prometheus.Gauge
	StepDuration          *prometheus.HistogramVec
	WorkflowRunDuration    prometheus.Histogram
}

// New builds a fresh registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		AlertsReceivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triageops_alerts_received_total",
			Help: "Total alerts accepted by a Source's webhook ingress.",
		}, []string{"source"}),
		WorkflowRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triageops_workflow_runs_total",
			Help: "Total workflow runs, labeled by final phase.",
		}, []string{"workflow", "phase"}),
		AgentIterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triageops_agent_iterations_total",
			Help: "Total reason/act loop iterations executed by the agent runtime.",
		}),
		ToolInvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triageops_tool_invocations_total",
			Help: "Total tool invocations by the agent runtime, labeled by tool and outcome.",
		}, []string{"tool", "outcome"}),
		SinkDeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triageops_sink_deliveries_total",
			Help: "Total sink delivery attempts, labeled by sink and outcome.",
		}, []string{"sink", "outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "triageops_workflow_queue_depth",
			Help: "Current number of queued workflow runs awaiting a worker.",
		}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triageops_step_duration_seconds",
			Help:    "Duration of individual workflow step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		WorkflowRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "triageops_workflow_run_duration_seconds",
			Help:    "Duration of a workflow run from enqueue to terminal phase.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler returns the HTTP handler to mount at GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRunPhase increments the run-phase counter for a terminal or
// suspended WorkflowRun.
func (r *Registry) ObserveRunPhase(workflowName string, phase model.RunPhase) {
	r.WorkflowRunsTotal.WithLabelValues(workflowName, string(phase)).Inc()
}

// ObserveToolInvocation records a tool call outcome ("ok" or "error").
func (r *Registry) ObserveToolInvocation(tool, outcome string) {
	r.ToolInvocationsTotal.WithLabelValues(tool, outcome).Inc()
}

// ObserveSinkDelivery records a sink delivery attempt's outcome.
func (r *Registry) ObserveSinkDelivery(sink, outcome string) {
	r.SinkDeliveriesTotal.WithLabelValues(sink, outcome).Inc()
}
