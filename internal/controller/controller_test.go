package controller

import (
	"context"
	"testing"
	"time"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

func TestManagerMarksWorkflowReadyWhenSinksExist(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)

	reg.PutSink(model.Sink{Name: "console", Type: model.SinkStdout})
	reg.PutWorkflow(model.Workflow{
		Name:  "diagnose",
		Steps: []model.WorkflowStep{{Name: "describe", Kind: model.StepCLI, Command: "kubectl get pods"}},
		Sinks: []string{"console"},
	})

	mgr := NewManager(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		wf, _ := reg.GetWorkflow("diagnose")
		if wf.Status.Ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("workflow never became ready")
}

func TestManagerMarksWorkflowNotReadyWhenSinkMissing(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)

	reg.PutWorkflow(model.Workflow{
		Name:  "broken",
		Steps: []model.WorkflowStep{{Name: "describe", Kind: model.StepCLI, Command: "kubectl get pods"}},
		Sinks: []string{"does-not-exist"},
	})

	mgr := NewManager(reg)
	mgr.reconcileAll()

	wf, _ := reg.GetWorkflow("broken")
	if wf.Status.Ready {
		t.Fatal("expected workflow to be not-ready due to missing sink")
	}
	if wf.Status.Reason == "" {
		t.Fatal("expected a reason to be recorded")
	}
}

func TestSinkControllerRejectsIncompleteSlackConfig(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)
	reg.PutSink(model.Sink{Name: "alerts", Type: model.SinkSlack, Config: model.SinkConfig{Channel: "C123"}})

	ctl := &SinkController{reg: reg}
	ready, reason := ctl.validate(model.Sink{Name: "alerts", Type: model.SinkSlack, Config: model.SinkConfig{Channel: "C123"}})
	if ready {
		t.Fatalf("expected not-ready due to missing bot token, got reason=%q", reason)
	}
}

func TestSourceControllerRequiresExistingTargetWorkflow(t *testing.T) {
	st := store.NewMemoryStore()
	reg := registry.New(st)
	ctl := &SourceController{reg: reg}

	ready, _ := ctl.validate(model.Source{Name: "alertmanager-hook", Type: model.SourceWebhook, Webhook: model.WebhookSourceConfig{Path: "/hooks/am"}, TriggerWorkflow: "missing"})
	if ready {
		t.Fatal("expected not-ready since triggerWorkflow does not exist")
	}
}
