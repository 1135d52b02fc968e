package controller

import (
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
)

// WorkflowController validates a Workflow's steps and referenced Sinks,
// mirroring original_source's WorkflowController — minus run-lifecycle
// reconciliation (phase Pending/Running/Succeeded/Failed), which this
// codebase's engine.Engine owns directly per WorkflowRun rather than
// driving it through a watched Workflow CR's status field.
type WorkflowController struct {
	reg *registry.Registry
}

func (c *WorkflowController) reconcile(w model.Workflow) {
	ready, reason := c.validate(w)
	if w.Status.Ready == ready && w.Status.Reason == reason {
		return
	}
	w.Status.Ready = ready
	w.Status.Reason = reason
	c.reg.PutWorkflow(w)
	logger.Printf("workflow %s ready=%v reason=%q", w.Name, ready, reason)
}

func (c *WorkflowController) validate(w model.Workflow) (bool, string) {
	if len(w.Steps) == 0 {
		return false, "workflow has no steps"
	}

	names := map[string]bool{}
	for _, step := range w.Steps {
		if step.Name == "" {
			return false, "step missing name"
		}
		if names[step.Name] {
			return false, "duplicate step name " + step.Name
		}
		names[step.Name] = true

		switch step.Kind {
		case model.StepCLI:
			if step.Command == "" {
				return false, "cli step " + step.Name + " missing command"
			}
		case model.StepAgent:
			if step.Goal == "" {
				return false, "agent step " + step.Name + " missing goal"
			}
		case model.StepConditional:
			if step.Condition == "" {
				return false, "conditional step " + step.Name + " missing condition"
			}
		default:
			return false, "step " + step.Name + " has unknown kind " + string(step.Kind)
		}
	}

	for _, sinkName := range w.Sinks {
		if _, ok := c.reg.GetSink(sinkName); !ok {
			return false, "sink " + sinkName + " does not exist"
		}
	}

	return true, "configured"
}
