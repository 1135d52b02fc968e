package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

type fakeTrigger struct {
	mu      sync.Mutex
	enqueued []model.Workflow
}

func (f *fakeTrigger) Enqueue(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, seed map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, wf)
	return nil
}

func TestDispatchStdoutSinkRecordsResult(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)
	reg.PutSink(model.Sink{Name: "console", Type: model.SinkStdout})

	run := &model.WorkflowRun{ID: "run-1", WorkflowName: "diagnose", Phase: model.RunSucceeded}
	_ = st.SaveWorkflowRun(context.Background(), run)

	wf := model.Workflow{Name: "diagnose", Sinks: []string{"console"}}

	d := NewDispatcher(reg, st, &fakeTrigger{})
	d.Dispatch(context.Background(), run, wf, map[string]any{})

	waitUntil(t, func() bool {
		stored, _ := st.GetWorkflowRun(context.Background(), "run-1")
		return stored != nil && stored.SinkResults["console"].Delivered
	})
}

func TestDispatchUnknownSinkIsSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)

	run := &model.WorkflowRun{ID: "run-2", WorkflowName: "diagnose", Phase: model.RunSucceeded}
	_ = st.SaveWorkflowRun(context.Background(), run)
	wf := model.Workflow{Name: "diagnose", Sinks: []string{"does-not-exist"}}

	d := NewDispatcher(reg, st, &fakeTrigger{})
	d.Dispatch(context.Background(), run, wf, map[string]any{})

	time.Sleep(50 * time.Millisecond)
	stored, _ := st.GetWorkflowRun(context.Background(), "run-2")
	if len(stored.SinkResults) != 0 {
		t.Fatalf("expected no sink results, got %v", stored.SinkResults)
	}
}

func TestWorkflowSinkChainsOnMatchingPhase(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)
	reg.PutWorkflow(model.Workflow{Name: "follow-up"})
	reg.PutSink(model.Sink{Name: "chain", Type: model.SinkWorkflow, Config: model.SinkConfig{WorkflowName: "follow-up", TriggerOnPhase: "succeeded"}})

	run := &model.WorkflowRun{ID: "run-3", WorkflowName: "diagnose", Phase: model.RunSucceeded}
	_ = st.SaveWorkflowRun(context.Background(), run)
	wf := model.Workflow{Name: "diagnose", Sinks: []string{"chain"}}

	trigger := &fakeTrigger{}
	d := NewDispatcher(reg, st, trigger)
	d.Dispatch(context.Background(), run, wf, map[string]any{})

	waitUntil(t, func() bool {
		trigger.mu.Lock()
		defer trigger.mu.Unlock()
		return len(trigger.enqueued) == 1
	})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
