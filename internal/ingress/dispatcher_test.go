package ingress

import (
	"context"
	"testing"
	"time"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

type fakeEngine struct {
	enqueued []string
}

func (f *fakeEngine) Enqueue(_ context.Context, run *model.WorkflowRun, wf model.Workflow, seed map[string]any) error {
	f.enqueued = append(f.enqueued, run.ID)
	return nil
}

func setup(t *testing.T) (*Dispatcher, *registry.Registry, *fakeEngine) {
	t.Helper()
	st := store.NewMemoryStore()
	reg := registry.New(st)
	reg.PutWorkflow(model.Workflow{Name: "investigate"})
	reg.PutSource(model.Source{
		Name:            "am-webhook",
		Type:            model.SourceWebhook,
		Webhook:         model.WebhookSourceConfig{Path: "/hooks/alerts", Filters: map[string][]string{"severity": {"critical", "warning"}}},
		TriggerWorkflow: "investigate",
	})
	eng := &fakeEngine{}
	return NewDispatcher(reg, st, eng, time.Minute), reg, eng
}

func alertPayload(name, severity, status string) model.AlertmanagerWebhook {
	return model.AlertmanagerWebhook{
		Status: "firing",
		Alerts: []model.AlertmanagerAlert{
			{
				Status:      status,
				Labels:      map[string]string{"alertname": name, "severity": severity, "namespace": "prod"},
				Annotations: map[string]string{"summary": "test"},
				StartsAt:    time.Now(),
				Fingerprint: model.Fingerprint(name, map[string]string{"alertname": name, "severity": severity, "namespace": "prod"}),
			},
		},
	}
}

func TestDispatcherAdmitsMatchingFilter(t *testing.T) {
	d, _, eng := setup(t)
	admitted, rejected, err := d.HandleWebhook(context.Background(), "/hooks/alerts", alertPayload("PodCrashLooping", "critical", "firing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted != 1 || rejected != 0 {
		t.Fatalf("admitted=%d rejected=%d", admitted, rejected)
	}
	if len(eng.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued run, got %d", len(eng.enqueued))
	}
}

func TestDispatcherRejectsFilteredOutSeverity(t *testing.T) {
	d, _, eng := setup(t)
	admitted, rejected, err := d.HandleWebhook(context.Background(), "/hooks/alerts", alertPayload("DiskSpaceLow", "info", "firing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admitted != 0 || rejected != 1 {
		t.Fatalf("admitted=%d rejected=%d", admitted, rejected)
	}
	if len(eng.enqueued) != 0 {
		t.Fatalf("expected no enqueued runs, got %d", len(eng.enqueued))
	}
}

func TestDispatcherDedupsWithinWindow(t *testing.T) {
	d, _, eng := setup(t)
	payload := alertPayload("PodCrashLooping", "critical", "firing")

	if _, _, err := d.HandleWebhook(context.Background(), "/hooks/alerts", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := d.HandleWebhook(context.Background(), "/hooks/alerts", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(eng.enqueued) != 1 {
		t.Fatalf("expected dedup to suppress second run, got %d enqueued", len(eng.enqueued))
	}
}

func TestDispatcherUnknownPath(t *testing.T) {
	d, _, _ := setup(t)
	if _, _, err := d.HandleWebhook(context.Background(), "/nope", alertPayload("X", "critical", "firing")); err == nil {
		t.Fatal("expected NotFoundError for unknown webhook path")
	}
}
