package sink

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/triageops/controlplane/internal/model"
)

// prometheusSink pushes a single gauge recording the run's outcome (1 for
// succeeded, 0 otherwise) to a Pushgateway, for workflows that need their
// result visible to Prometheus-based alerting rather than a chat channel.
type prometheusSink struct {
	pushgateway string
	job         string
}

func newPrometheusSink(cfg model.SinkConfig) *prometheusSink {
	return &prometheusSink{pushgateway: cfg.Pushgateway, job: firstNonEmpty(cfg.Job, "triageops_workflow_run")}
}

func (s *prometheusSink) Send(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) error {
	if s.pushgateway == "" {
		return fmt.Errorf("prometheus sink not configured: missing pushgateway URL")
	}

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "workflow_run_succeeded",
		Help: "1 if the workflow run succeeded, 0 otherwise.",
	})
	if run.Phase == model.RunSucceeded {
		gauge.Set(1)
	}

	pusher := push.New(s.pushgateway, s.job).
		Collector(gauge).
		Grouping("workflow", wf.Name).
		Grouping("run", run.ID)

	return pusher.PushContext(ctx)
}
