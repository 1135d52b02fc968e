package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/triageops/controlplane/internal/agent"
	"github.com/triageops/controlplane/internal/agent/tools"
	"github.com/triageops/controlplane/internal/model"
)

type fakeCLIRunner struct {
	output string
	err    error
}

func (f *fakeCLIRunner) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	return f.output, f.err
}

func newTestExecutor(cli CLIRunner) *Executor {
	rt := agent.NewRuntime(agent.NewMockProvider(), agent.NewSafetyValidator(agent.DefaultSafetyConfig()), 10, 5*time.Second)
	return New(cli, AgentDispatch{Runtime: rt, Registry: tools.NewRegistry()})
}

func TestExecuteCLIStep(t *testing.T) {
	ex := newTestExecutor(&fakeCLIRunner{output: "pod is crashlooping"})

	step := model.WorkflowStep{Name: "describe-pod", Kind: model.StepCLI, Command: "kubectl describe pod {{ input.pod }}"}
	wctx := model.NewWorkflowContext("run-1", map[string]json.RawMessage{"pod": json.RawMessage(`"payment-7"`)})

	outcome, err := ex.ExecuteStep(context.Background(), step, wctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(outcome.Output, &decoded); err != nil {
		t.Fatalf("output not valid json: %v", err)
	}
	if decoded["output"] != "pod is crashlooping" {
		t.Fatalf("unexpected cli output: %v", decoded)
	}
}

func TestExecuteCLIStepFailure(t *testing.T) {
	ex := newTestExecutor(&fakeCLIRunner{err: context.DeadlineExceeded})

	step := model.WorkflowStep{Name: "flaky", Kind: model.StepCLI, Command: "kubectl get pods"}
	wctx := model.NewWorkflowContext("run-1", nil)

	_, err := ex.ExecuteStep(context.Background(), step, wctx)
	if err == nil {
		t.Fatal("expected error")
	}
	var stepErr *model.StepError
	if !asStepError(err, &stepErr) {
		t.Fatalf("expected *model.StepError, got %T", err)
	}
	if stepErr.Kind != model.StepErrorExecution {
		t.Fatalf("expected execution error kind, got %v", stepErr.Kind)
	}
}

func TestExecuteConditionalStep(t *testing.T) {
	ex := newTestExecutor(&fakeCLIRunner{})

	step := model.WorkflowStep{Name: "check-severity", Kind: model.StepConditional, Condition: "input.severity == critical"}
	wctx := model.NewWorkflowContext("run-1", map[string]json.RawMessage{"severity": json.RawMessage(`"critical"`)})

	outcome, err := ex.ExecuteStep(context.Background(), step, wctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(outcome.Output, &decoded); err != nil {
		t.Fatalf("output not valid json: %v", err)
	}
	if decoded["matched"] != true {
		t.Fatalf("expected condition to match, got %v", decoded)
	}
}

func TestExecuteAgentStep(t *testing.T) {
	ex := newTestExecutor(&fakeCLIRunner{})

	step := model.WorkflowStep{Name: "investigate", Kind: model.StepAgent, Goal: "investigate {{ input.alertname }}", ApprovalRequired: true}
	wctx := model.NewWorkflowContext("run-1", map[string]json.RawMessage{"alertname": json.RawMessage(`"PodCrashLooping"`)})

	outcome, err := ex.ExecuteStep(context.Background(), step, wctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result model.AgentResult
	if err := json.Unmarshal(outcome.Output, &result); err != nil {
		t.Fatalf("output not valid json: %v", err)
	}
	if result.RootCause != "OOM" {
		t.Fatalf("unexpected agent result: %+v", result)
	}
}

func asStepError(err error, target **model.StepError) bool {
	se, ok := err.(*model.StepError)
	if ok {
		*target = se
	}
	return ok
}
