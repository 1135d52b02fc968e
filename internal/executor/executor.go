// Package executor implements per-step execution for the three
// WorkflowStep kinds (cli, agent, conditional), grounded on
// original_source/crates/operator/src/workflow/executor.rs's execute_step
// dispatch, render_template/evaluate_condition, and CLI-step pod
// lifecycle — delegated to a CLIRunner (internal/client's PodRunner runs
// a single Pod via client-go with a poll loop instead of a raw `kube` Pod
// watch), and with the agent step fully wired to
// internal/agent (the original's execute_agent_step is an unimplemented
// placeholder, so this wiring has no line-for-line original to follow).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/triageops/controlplane/internal/agent"
	"github.com/triageops/controlplane/internal/agent/tools"
	"github.com/triageops/controlplane/internal/logging"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/template"
)

var logger = logging.New("executor")

// CLIRunner abstracts "run this rendered command and return its output",
// so the executor doesn't hard-depend on a Kubernetes client in tests.
type CLIRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (output string, err error)
}

// SimilarIncidentIndex is the narrow surface the executor needs from
// internal/embedding, kept as an interface so agent steps can run
// without an embedding backend configured (Embeddings left nil).
type SimilarIncidentIndex interface {
	FindSimilar(ctx context.Context, query string, limit int) ([]model.SimilarIncident, error)
	IndexResult(ctx context.Context, runID string, result model.AgentResult) error
}

// AgentDispatch is the narrow surface the executor needs from the agent
// runtime plus the process-wide tool registry.
type AgentDispatch struct {
	Runtime    *agent.Runtime
	Registry   *tools.Registry
	Embeddings SimilarIncidentIndex
}

const similarIncidentLimit = 5

// Executor runs a single WorkflowStep against a WorkflowContext, returning
// the step's output to be folded into the next context via
// WorkflowContext.WithStepOutput.
type Executor struct {
	cli   CLIRunner
	agent AgentDispatch
}

func New(cli CLIRunner, ad AgentDispatch) *Executor {
	return &Executor{cli: cli, agent: ad}
}

// StepOutcome is what ExecuteStep returns: the step's JSON output to
// record, or a suspension request when an agent step hit an
// approval-gated tool call.
type StepOutcome struct {
	Output   json.RawMessage
	Suspend  *model.PendingApproval
}

func (e *Executor) ExecuteStep(ctx context.Context, step model.WorkflowStep, wctx *model.WorkflowContext) (StepOutcome, error) {
	data, err := wctx.AsValue()
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorTemplate, Reason: err.Error()}
	}

	switch step.Kind {
	case model.StepCLI:
		return e.executeCLI(ctx, step, data)
	case model.StepAgent:
		return e.executeAgent(ctx, step, wctx.RunID, data)
	case model.StepConditional:
		return e.executeConditional(ctx, step, wctx.RunID, data)
	default:
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorExecution, Reason: fmt.Sprintf("unknown step kind %q", step.Kind)}
	}
}

// ResumeAgentStep re-enters a suspended agent (or conditional then_agent)
// step with the human's approval decision, picking the investigation back
// up exactly where it suspended. pending.ThenAgentStep, if set, tells it
// to re-wrap the eventual result under {"matched": true, ...} the way
// executeConditional does on the unsuspended path.
func (e *Executor) ResumeAgentStep(ctx context.Context, pending *model.PendingApproval, decision model.ApprovalDecision) (StepOutcome, error) {
	scoped := e.agent.Registry
	if len(pending.ToolNames) > 0 {
		scoped = e.agent.Registry.Subset(pending.ToolNames)
	}

	report := e.agent.Runtime.Resume(ctx, pending, decision, scoped)
	result, again, err := e.finishInvestigation(ctx, pending.StepName, pending.RunID, pending.ToolNames, pending.ApprovalRequired, report, nil)
	if err != nil {
		return StepOutcome{}, err
	}
	if again != nil {
		again.ThenAgentStep = pending.ThenAgentStep
		return StepOutcome{Suspend: again}, nil
	}

	if pending.ThenAgentStep {
		output, err := mergeConditionalMatch(result)
		if err != nil {
			return StepOutcome{}, &model.StepError{Step: pending.StepName, Kind: model.StepErrorExecution, Reason: err.Error()}
		}
		return StepOutcome{Output: output}, nil
	}
	output, err := json.Marshal(result)
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: pending.StepName, Kind: model.StepErrorExecution, Reason: err.Error()}
	}
	return StepOutcome{Output: output}, nil
}

func (e *Executor) executeCLI(ctx context.Context, step model.WorkflowStep, data map[string]any) (StepOutcome, error) {
	rendered := template.Render(step.Command, data)

	timeout := time.Duration(step.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	out, err := e.cli.Run(ctx, rendered, timeout)
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorExecution, Reason: err.Error()}
	}

	output, err := json.Marshal(map[string]any{"output": out, "success": true})
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorExecution, Reason: err.Error()}
	}
	return StepOutcome{Output: output}, nil
}

func (e *Executor) executeAgent(ctx context.Context, step model.WorkflowStep, runID string, data map[string]any) (StepOutcome, error) {
	result, pending, err := e.investigate(ctx, step, runID, data)
	if err != nil {
		return StepOutcome{}, err
	}
	if pending != nil {
		return StepOutcome{Suspend: pending}, nil
	}
	output, err := json.Marshal(result)
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorExecution, Reason: err.Error()}
	}
	return StepOutcome{Output: output}, nil
}

// investigate runs one agent step's goal through the runtime and settles
// the outcome into either a result, a suspension, or an error, shared by
// both top-level agent steps and a conditional step's then_agent.
func (e *Executor) investigate(ctx context.Context, step model.WorkflowStep, runID string, data map[string]any) (model.AgentResult, *model.PendingApproval, error) {
	goal := template.Render(step.Goal, data)

	scoped := e.agent.Registry
	if len(step.Tools) > 0 {
		scoped = e.agent.Registry.Subset(step.Tools)
	}

	var similar []model.SimilarIncident
	if e.agent.Embeddings != nil {
		if found, err := e.agent.Embeddings.FindSimilar(ctx, goal, similarIncidentLimit); err == nil {
			similar = found
			data["similarIncidents"] = similar
		}
	}

	report := e.agent.Runtime.Investigate(ctx, goal, data, scoped, step.ApprovalRequired)
	return e.finishInvestigation(ctx, step.Name, runID, step.Tools, step.ApprovalRequired, report, similar)
}

// finishInvestigation turns a raw InvestigationReport into the executor's
// result/pending/error triple, filling in the step-scoped fields (name,
// declared tools, approval policy) a freshly-constructed PendingApproval
// needs to be resumable later, and indexing a completed result for
// similarity search.
func (e *Executor) finishInvestigation(ctx context.Context, stepName, runID string, toolNames []string, approvalRequired bool, report agent.InvestigationReport, similar []model.SimilarIncident) (model.AgentResult, *model.PendingApproval, error) {
	switch report.Outcome {
	case agent.OutcomeSuspended:
		report.Approval.RunID = runID
		report.Approval.StepName = stepName
		report.Approval.ToolNames = toolNames
		return model.AgentResult{}, report.Approval, nil
	case agent.OutcomeFailed:
		return model.AgentResult{}, nil, &model.StepError{Step: stepName, Kind: model.StepErrorExecution, Reason: report.Err.Error()}
	}

	report.Result.SimilarIncidents = similar
	if e.agent.Embeddings != nil {
		if err := e.agent.Embeddings.IndexResult(ctx, runID, report.Result); err != nil {
			logger.Printf("failed to index investigation result for run %s: %v", runID, err)
		}
	}
	return report.Result, nil, nil
}

// executeConditional evaluates the step's condition and, when it matches
// and a then_agent is declared, runs that agent step in-line, merging its
// result fields under the same step name alongside "matched": true.
func (e *Executor) executeConditional(ctx context.Context, step model.WorkflowStep, runID string, data map[string]any) (StepOutcome, error) {
	matched, err := template.EvaluateCondition(step.Condition, data)
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorTemplate, Reason: err.Error()}
	}

	if !matched || step.ThenAgent == nil {
		output, err := json.Marshal(map[string]any{"matched": matched})
		if err != nil {
			return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorExecution, Reason: err.Error()}
		}
		return StepOutcome{Output: output}, nil
	}

	result, pending, err := e.investigate(ctx, *step.ThenAgent, runID, data)
	if err != nil {
		return StepOutcome{}, err
	}
	if pending != nil {
		pending.StepName = step.Name
		pending.ThenAgentStep = true
		return StepOutcome{Suspend: pending}, nil
	}

	output, err := mergeConditionalMatch(result)
	if err != nil {
		return StepOutcome{}, &model.StepError{Step: step.Name, Kind: model.StepErrorExecution, Reason: err.Error()}
	}
	return StepOutcome{Output: output}, nil
}

// mergeConditionalMatch flattens an AgentResult's fields into a single
// object alongside "matched": true, so a then_agent's findings land under
// the conditional step's own name instead of nesting a step within a step.
func mergeConditionalMatch(result model.AgentResult) (json.RawMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["matched"] = true
	return json.Marshal(fields)
}
