package engine

import (
	"context"
	"testing"
	"time"

	"github.com/triageops/controlplane/internal/agent"
	"github.com/triageops/controlplane/internal/agent/tools"
	"github.com/triageops/controlplane/internal/executor"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
)

type recordingCLI struct{}

func (recordingCLI) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	return "ok: " + command, nil
}

type recordingSinks struct {
	dispatched chan *model.WorkflowRun
}

func (r *recordingSinks) Dispatch(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) {
	r.dispatched <- run
}

func newTestEngine(t *testing.T, st store.Store, sinks SinkDispatcher) *Engine {
	t.Helper()
	rt := agent.NewRuntime(agent.NewMockProvider(), agent.NewSafetyValidator(agent.DefaultSafetyConfig()), 10, 5*time.Second)
	exec := executor.New(recordingCLI{}, executor.AgentDispatch{Runtime: rt, Registry: tools.NewRegistry()})
	return New(st, exec, sinks, 10, 2)
}

func TestEngineRunsStepsSequentiallyAndDispatchesSinks(t *testing.T) {
	st := store.NewMemoryStore()
	sinks := &recordingSinks{dispatched: make(chan *model.WorkflowRun, 1)}
	e := newTestEngine(t, st, sinks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	wf := model.Workflow{
		Name: "diagnose-crashloop",
		Steps: []model.WorkflowStep{
			{Name: "describe", Kind: model.StepCLI, Command: "kubectl describe pod {{ input.alert.labels.pod }}"},
			{Name: "investigate", Kind: model.StepAgent, Goal: "investigate {{ input.alert.alertname }}"},
		},
		Outputs: []model.OutputDef{{Name: "rootCause", Value: "steps.investigate.rootCause"}},
	}

	run := &model.WorkflowRun{ID: "run-1", WorkflowName: wf.Name, Phase: model.RunPending, CreatedAt: time.Now()}
	seed := map[string]any{"alert": map[string]any{"alertname": "PodCrashLooping", "labels": map[string]any{"pod": "payment-7"}}}

	if err := e.Enqueue(ctx, run, wf, seed); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	select {
	case dispatched := <-sinks.dispatched:
		if dispatched.Phase != model.RunSucceeded {
			t.Fatalf("expected succeeded phase, got %v", dispatched.Phase)
		}
		if len(dispatched.Steps) != 2 {
			t.Fatalf("expected 2 recorded steps, got %d", len(dispatched.Steps))
		}
		if dispatched.Outputs["rootCause"] != "OOM" {
			t.Fatalf("expected rendered output rootCause=OOM, got %v", dispatched.Outputs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete in time")
	}
}

func TestEngineHaltsOnFirstStepFailure(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	wf := model.Workflow{
		Name: "broken",
		Steps: []model.WorkflowStep{
			{Name: "bad-condition", Kind: model.StepConditional, Condition: "not enough tokens"},
			{Name: "never-runs", Kind: model.StepCLI, Command: "echo hi"},
		},
	}
	run := &model.WorkflowRun{ID: "run-2", WorkflowName: wf.Name, Phase: model.RunPending, CreatedAt: time.Now()}

	if err := e.Enqueue(ctx, run, wf, map[string]any{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var stored *model.WorkflowRun
	for time.Now().Before(deadline) {
		stored, _ = st.GetWorkflowRun(ctx, "run-2")
		if stored.Phase == model.RunFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if stored.Phase != model.RunFailed {
		t.Fatalf("expected failed phase, got %v", stored.Phase)
	}
	if len(stored.Steps) != 1 {
		t.Fatalf("expected execution to halt after 1 step, got %d", len(stored.Steps))
	}
}

func TestEnqueueRejectsWhenQueueSaturated(t *testing.T) {
	st := store.NewMemoryStore()
	rt := agent.NewRuntime(agent.NewMockProvider(), agent.NewSafetyValidator(agent.DefaultSafetyConfig()), 10, 5*time.Second)
	exec := executor.New(recordingCLI{}, executor.AgentDispatch{Runtime: rt, Registry: tools.NewRegistry()})
	e := New(st, exec, nil, 1, 0)
	// Don't call Start: nothing drains the queue, so the second Enqueue
	// must observe backpressure once the single slot is filled.

	wf := model.Workflow{Name: "noop"}
	run1 := &model.WorkflowRun{ID: "r1", WorkflowName: wf.Name}
	run2 := &model.WorkflowRun{ID: "r2", WorkflowName: wf.Name}

	if err := e.Enqueue(context.Background(), run1, wf, nil); err != nil {
		t.Fatalf("first enqueue should succeed: %v", err)
	}
	err := e.Enqueue(context.Background(), run2, wf, nil)
	if err == nil {
		t.Fatal("expected backpressure error on second enqueue")
	}
	var bpErr *model.BackpressureError
	if be, ok := err.(*model.BackpressureError); ok {
		bpErr = be
	}
	if bpErr == nil {
		t.Fatalf("expected *model.BackpressureError, got %T", err)
	}
}
