// Package controller implements the Source/Workflow/Sink reconciler
// loops: each consumes registry.Registry.Subscribe() events (standing in
// for a real Kubernetes controller-runtime watch), validates the
// resource, and writes back a Ready/Reason status — mirroring
// original_source's crates/operator/src/controllers/{source,sink,workflow}.rs
// reconcile functions, with kube::Api::patch_status replaced by
// Registry.Put* since there is no real Kubernetes API server here.
package controller

import (
	"context"

	"github.com/triageops/controlplane/internal/logging"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
)

var logger = logging.New("controller")

// Manager runs all three reconciler loops against a shared registry
// subscription, dispatching each event to the controller for its kind.
type Manager struct {
	reg        *registry.Registry
	sourceCtl  *SourceController
	workflowCtl *WorkflowController
	sinkCtl    *SinkController
}

func NewManager(reg *registry.Registry) *Manager {
	return &Manager{
		reg:        reg,
		sourceCtl:  &SourceController{reg: reg},
		workflowCtl: &WorkflowController{reg: reg},
		sinkCtl:    &SinkController{reg: reg},
	}
}

// Run consumes the registry's event stream until ctx is cancelled,
// reconciling each resource as its create/update/delete event arrives.
// Run also does an initial reconcile pass over every already-rehydrated
// resource, since Subscribe only delivers events from this point forward.
func (m *Manager) Run(ctx context.Context) {
	m.reconcileAll()

	events := m.reg.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			m.dispatch(ev)
		}
	}
}

// ReconcileOnce runs a single reconcile pass over every currently
// registered resource and returns, for operator tooling that wants a
// one-shot status refresh without starting the long-running watch loop.
func (m *Manager) ReconcileOnce() {
	m.reconcileAll()
}

func (m *Manager) reconcileAll() {
	for _, s := range m.reg.ListSources() {
		m.sourceCtl.reconcile(s)
	}
	for _, w := range m.reg.ListWorkflows() {
		m.workflowCtl.reconcile(w)
	}
	for _, sk := range m.reg.ListSinks() {
		m.sinkCtl.reconcile(sk)
	}
}

func (m *Manager) dispatch(ev registry.ResourceEvent) {
	if ev.Delete {
		logger.Printf("%s %q deleted", ev.Kind, ev.Name)
		return
	}
	switch ev.Kind {
	case model.KindSource:
		if s, ok := m.reg.GetSource(ev.Name); ok {
			m.sourceCtl.reconcile(s)
		}
	case model.KindWorkflow:
		if w, ok := m.reg.GetWorkflow(ev.Name); ok {
			m.workflowCtl.reconcile(w)
		}
	case model.KindSink:
		if sk, ok := m.reg.GetSink(ev.Name); ok {
			m.sinkCtl.reconcile(sk)
		}
	}
}
