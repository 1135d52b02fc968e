// Package ingress implements the webhook ingress dispatcher: it parses
// Alertmanager v2 payloads, applies a Source's filters, fingerprints and
// deduplicates alerts, tracks flapping, and queues a WorkflowRun for the
// Source's trigger_workflow. Grounded on the teacher's
// internal/handler/alertmanager.go (parse+log) and internal/service/alert.go
// (severity filter, flapping state machine), and on original_source's
// src/sources/webhook.rs (should_process_alert, fingerprinting, dedup).
package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/triageops/controlplane/internal/logging"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

var logger = logging.New("ingress")

// Engine is the minimal surface the dispatcher needs from the workflow
// engine, kept narrow per the cyclic-ownership design note.
type Engine interface {
	Enqueue(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, seed map[string]any) error
}

// Dispatcher receives parsed Alertmanager webhooks, applies per-Source
// filters, dedups by fingerprint within a window, and triggers the
// Source's target Workflow.
type Dispatcher struct {
	reg    *registry.Registry
	store  store.Store
	engine Engine
	dedup  *cache.Cache
	window time.Duration
	flapping *flappingTracker
}

func NewDispatcher(reg *registry.Registry, st store.Store, eng Engine, dedupWindow time.Duration) *Dispatcher {
	return &Dispatcher{
		reg:    reg,
		store:  st,
		engine: eng,
		dedup:  cache.New(dedupWindow, dedupWindow/2),
		window: dedupWindow,
		flapping: newFlappingTracker(),
	}
}

// HandleWebhook processes one Alertmanager payload destined for the
// Source registered at path. It returns the number of alerts admitted
// and the number rejected by filters.
func (d *Dispatcher) HandleWebhook(ctx context.Context, path string, payload model.AlertmanagerWebhook) (admitted, rejected int, err error) {
	src, ok := d.reg.SourceByWebhookPath(path)
	if !ok {
		return 0, 0, &model.NotFoundError{Kind: model.KindSource, Name: path}
	}

	wf, ok := d.reg.GetWorkflow(src.TriggerWorkflow)
	if !ok {
		return 0, 0, &model.NotFoundError{Kind: model.KindWorkflow, Name: src.TriggerWorkflow}
	}

	for _, raw := range payload.Alerts {
		if !d.shouldProcess(src, raw.Labels) {
			rejected++
			continue
		}

		alert, isNew, isFlapping := d.admitAlert(ctx, src.Name, raw)
		admitted++

		if isFlapping {
			logger.Printf("alert %s is flapping, suppressing workflow trigger", alert.Fingerprint)
			continue
		}
		if !isNew && alert.Status == model.AlertFiring {
			// Already-seen firing alert within the dedup window: no new run.
			continue
		}

		run := &model.WorkflowRun{
			ID:           fmt.Sprintf("run-%s-%d", alert.Fingerprint[:12], time.Now().UnixNano()),
			WorkflowName: wf.Name,
			SourceName:   src.Name,
			AlertID:      alert.ID,
			Phase:        model.RunPending,
			CreatedAt:    time.Now(),
		}

		seed := map[string]any{
			"alert":   alertToValue(alert),
			"source":  map[string]any{"name": src.Name, "context": src.Context},
		}

		if err := d.engine.Enqueue(ctx, run, wf, seed); err != nil {
			logger.Printf("enqueue failed for %s: %v", alert.Fingerprint, err)
		}
	}

	return admitted, rejected, nil
}

// shouldProcess applies the Source's label filters: a missing filter key
// in the alert rejects it outright; empty filters admit everything,
// matching original_source's should_process_alert.
func (d *Dispatcher) shouldProcess(src model.Source, labels map[string]string) bool {
	if len(src.Webhook.Filters) == 0 {
		return true
	}
	for key, allowed := range src.Webhook.Filters {
		val, ok := labels[key]
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if a == val {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// admitAlert fingerprints, dedups and persists one raw alert, returning
// the stored alert plus whether it is new (first time this fingerprint is
// seen within the window) and whether it is currently flapping.
func (d *Dispatcher) admitAlert(ctx context.Context, sourceName string, raw model.AlertmanagerAlert) (model.Alert, bool, bool) {
	fp := raw.Fingerprint
	if fp == "" {
		fp = model.Fingerprint(raw.Labels["alertname"], raw.Labels)
	}

	now := time.Now()
	existing, _ := d.store.GetAlertByFingerprint(ctx, fp)

	isNew := existing == nil
	var alert model.Alert
	if existing != nil {
		alert = *existing
		alert.Occurrences++
	} else {
		alert = model.Alert{
			ID:          fp,
			CreatedAt:   now,
			Occurrences: 1,
		}
	}

	alert.SourceName = sourceName
	alert.Fingerprint = fp
	alert.Status = model.AlertStatus(raw.Status)
	alert.Labels = raw.Labels
	alert.Annotations = raw.Annotations
	alert.StartsAt = raw.StartsAt
	alert.EndsAt = raw.EndsAt
	alert.GeneratorURL = raw.GeneratorURL
	alert.LastSeenAt = now
	alert.UpdatedAt = now

	alert.Flapping = d.detectFlapping(fp, alert.Status)

	_ = d.store.SaveAlert(ctx, &alert)

	_, seenRecently := d.dedup.Get(fp)
	d.dedup.Set(fp, true, cache.DefaultExpiration)

	return alert, isNew || !seenRecently, alert.Flapping
}

func alertToValue(a model.Alert) map[string]any {
	return map[string]any{
		"fingerprint": a.Fingerprint,
		"status":      string(a.Status),
		"labels":      a.Labels,
		"annotations": a.Annotations,
		"alertname":   a.Labels["alertname"],
		"namespace":   a.Labels["namespace"],
		"severity":    a.Labels["severity"],
	}
}
