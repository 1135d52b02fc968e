package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
)

// workflowSink chains into another Workflow when the triggering run
// reaches the configured phase, implementing the declarative
// sink-of-type-workflow chaining the registry's WorkflowSinkCycle guards
// against at admission time.
type workflowSink struct {
	targetName     string
	triggerOnPhase model.RunPhase
	reg            *registry.Registry
	trigger        WorkflowTrigger
}

func newWorkflowSink(cfg model.SinkConfig, reg *registry.Registry, trigger WorkflowTrigger) *workflowSink {
	phase := model.RunPhase(cfg.TriggerOnPhase)
	if phase == "" {
		phase = model.RunSucceeded
	}
	return &workflowSink{targetName: cfg.WorkflowName, triggerOnPhase: phase, reg: reg, trigger: trigger}
}

func (s *workflowSink) Send(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) error {
	if s.targetName == "" {
		return fmt.Errorf("workflow sink not configured: missing target workflow name")
	}
	if run.Phase != s.triggerOnPhase {
		return nil
	}

	target, ok := s.reg.GetWorkflow(s.targetName)
	if !ok {
		return &model.NotFoundError{Kind: model.KindWorkflow, Name: s.targetName}
	}

	chained := &model.WorkflowRun{
		ID:           fmt.Sprintf("run-%s-chained-%d", target.Name, time.Now().UnixNano()),
		WorkflowName: target.Name,
		SourceName:   run.SourceName,
		AlertID:      run.AlertID,
		Phase:        model.RunPending,
		CreatedAt:    time.Now(),
	}

	seed := map[string]any{
		"upstream": map[string]any{
			"runId":        run.ID,
			"workflowName": wf.Name,
			"phase":        string(run.Phase),
			"data":         data,
		},
	}

	return s.trigger.Enqueue(ctx, chained, target, seed)
}
