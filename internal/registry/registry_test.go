package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
)

func TestPutGetDeleteSource(t *testing.T) {
	r := New(store.NewMemoryStore())

	s := model.Source{Name: "prom-alerts", Type: model.SourceWebhook, Webhook: model.WebhookSourceConfig{Path: "prom"}}
	r.PutSource(s)

	got, ok := r.GetSource("prom-alerts")
	if !ok || got.Name != "prom-alerts" {
		t.Fatalf("expected to find prom-alerts, got %+v ok=%v", got, ok)
	}

	found, ok := r.SourceByWebhookPath("prom")
	if !ok || found.Name != "prom-alerts" {
		t.Fatalf("expected SourceByWebhookPath to find prom-alerts, got %+v ok=%v", found, ok)
	}

	r.DeleteSource("prom-alerts")
	if _, ok := r.GetSource("prom-alerts"); ok {
		t.Fatal("expected prom-alerts to be gone after delete")
	}
}

func TestSubscribePublishesPutAndDeleteEvents(t *testing.T) {
	r := New(store.NewMemoryStore())
	events := r.Subscribe()

	r.PutWorkflow(model.Workflow{Name: "diagnose"})
	ev := <-events
	if ev.Kind != model.KindWorkflow || ev.Name != "diagnose" || ev.Delete {
		t.Fatalf("unexpected put event: %+v", ev)
	}

	r.DeleteWorkflow("diagnose")
	ev = <-events
	if ev.Kind != model.KindWorkflow || ev.Name != "diagnose" || !ev.Delete {
		t.Fatalf("unexpected delete event: %+v", ev)
	}
}

func TestRehydrateLoadsPersistedResources(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Rehydrate reads from the store, not from another Registry's
	// in-memory maps, so resources must be persisted through
	// SaveResource the same way the resource handlers do.
	mustSave(t, st, model.KindSource, "src", model.Source{Name: "src"})
	mustSave(t, st, model.KindWorkflow, "wf", model.Workflow{Name: "wf"})
	mustSave(t, st, model.KindSink, "sk", model.Sink{Name: "sk"})

	r := New(st)
	if err := r.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	if _, ok := r.GetSource("src"); !ok {
		t.Error("expected source to be rehydrated")
	}
	if _, ok := r.GetWorkflow("wf"); !ok {
		t.Error("expected workflow to be rehydrated")
	}
	if _, ok := r.GetSink("sk"); !ok {
		t.Error("expected sink to be rehydrated")
	}
}

func mustSave(t *testing.T, st store.Store, kind model.ResourceKind, name string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := st.SaveResource(context.Background(), kind, name, raw); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
}

func TestWorkflowSinkCycleDetectsCycles(t *testing.T) {
	r := New(store.NewMemoryStore())

	r.PutWorkflow(model.Workflow{Name: "a", Sinks: []string{"a-to-b"}})
	r.PutWorkflow(model.Workflow{Name: "b", Sinks: []string{"b-to-a"}})
	r.PutSink(model.Sink{Name: "a-to-b", Type: model.SinkWorkflow, Config: model.SinkConfig{WorkflowName: "b"}})
	r.PutSink(model.Sink{Name: "b-to-a", Type: model.SinkWorkflow, Config: model.SinkConfig{WorkflowName: "a"}})

	if !r.WorkflowSinkCycle("a", "b") {
		t.Fatal("expected a cycle between a and b through their workflow-chaining sinks")
	}

	r2 := New(store.NewMemoryStore())
	r2.PutWorkflow(model.Workflow{Name: "x", Sinks: []string{"x-to-y"}})
	r2.PutWorkflow(model.Workflow{Name: "y"})
	r2.PutSink(model.Sink{Name: "x-to-y", Type: model.SinkWorkflow, Config: model.SinkConfig{WorkflowName: "y"}})

	if r2.WorkflowSinkCycle("x", "y") {
		t.Fatal("did not expect a cycle for a one-way chain")
	}
}
