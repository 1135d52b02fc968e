// Package registry holds the process-global, in-memory set of
// Source/Workflow/Sink resources, with explicit lifecycle: resources are
// admitted via Put, removed via Delete, and rehydrated from the Store at
// startup. Controllers and the ingress dispatcher see the registry only
// through the narrow interfaces they each need, per the cyclic-ownership
// design note (a Source names a Workflow, a Workflow names Sinks, a Sink
// may name a Workflow — none of them holds a live reference to another,
// only a name the registry resolves on demand).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
)

// ResourceEvent is a create/update/delete notification the controllers
// consume, simulating a Kubernetes watch stream without a real CRD layer.
type ResourceEvent struct {
	Kind   model.ResourceKind
	Name   string
	Delete bool
}

// Registry is the process-global resource set.
type Registry struct {
	mu        sync.RWMutex
	sources   map[string]model.Source
	workflows map[string]model.Workflow
	sinks     map[string]model.Sink

	store store.Store

	subsMu sync.Mutex
	subs   []chan ResourceEvent
}

func New(st store.Store) *Registry {
	return &Registry{
		sources:   map[string]model.Source{},
		workflows: map[string]model.Workflow{},
		sinks:     map[string]model.Sink{},
		store:     st,
	}
}

// Subscribe returns a channel of resource events, consumed by a single
// controller goroutine. The channel is buffered so a slow controller
// cannot block the writer that produced the event.
func (r *Registry) Subscribe() <-chan ResourceEvent {
	ch := make(chan ResourceEvent, 64)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()
	return ch
}

func (r *Registry) publish(ev ResourceEvent) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Rehydrate loads every persisted Source/Workflow/Sink from the store at
// startup. A missing or empty store is not an error.
func (r *Registry) Rehydrate(ctx context.Context) error {
	sources, err := r.store.ListResources(ctx, model.KindSource)
	if err != nil {
		return fmt.Errorf("rehydrate sources: %w", err)
	}
	for name, raw := range sources {
		var s model.Source
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("rehydrate source %q: %w", name, err)
		}
		r.PutSource(s)
	}

	workflows, err := r.store.ListResources(ctx, model.KindWorkflow)
	if err != nil {
		return fmt.Errorf("rehydrate workflows: %w", err)
	}
	for name, raw := range workflows {
		var w model.Workflow
		if err := json.Unmarshal(raw, &w); err != nil {
			return fmt.Errorf("rehydrate workflow %q: %w", name, err)
		}
		r.PutWorkflow(w)
	}

	sinks, err := r.store.ListResources(ctx, model.KindSink)
	if err != nil {
		return fmt.Errorf("rehydrate sinks: %w", err)
	}
	for name, raw := range sinks {
		var sk model.Sink
		if err := json.Unmarshal(raw, &sk); err != nil {
			return fmt.Errorf("rehydrate sink %q: %w", name, err)
		}
		r.PutSink(sk)
	}
	return nil
}

func (r *Registry) PutSource(s model.Source) {
	r.mu.Lock()
	r.sources[s.Name] = s
	r.mu.Unlock()
	r.publish(ResourceEvent{Kind: model.KindSource, Name: s.Name})
}

func (r *Registry) DeleteSource(name string) {
	r.mu.Lock()
	delete(r.sources, name)
	r.mu.Unlock()
	r.publish(ResourceEvent{Kind: model.KindSource, Name: name, Delete: true})
}

func (r *Registry) GetSource(name string) (model.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

func (r *Registry) ListSources() []model.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out
}

// SourceByWebhookPath finds the Source (if any) registered for an
// inbound webhook path.
func (r *Registry) SourceByWebhookPath(path string) (model.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if s.Type == model.SourceWebhook && s.Webhook.Path == path {
			return s, true
		}
	}
	return model.Source{}, false
}

func (r *Registry) PutWorkflow(w model.Workflow) {
	r.mu.Lock()
	r.workflows[w.Name] = w
	r.mu.Unlock()
	r.publish(ResourceEvent{Kind: model.KindWorkflow, Name: w.Name})
}

func (r *Registry) DeleteWorkflow(name string) {
	r.mu.Lock()
	delete(r.workflows, name)
	r.mu.Unlock()
	r.publish(ResourceEvent{Kind: model.KindWorkflow, Name: name, Delete: true})
}

func (r *Registry) GetWorkflow(name string) (model.Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[name]
	return w, ok
}

func (r *Registry) ListWorkflows() []model.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	return out
}

func (r *Registry) PutSink(s model.Sink) {
	r.mu.Lock()
	r.sinks[s.Name] = s
	r.mu.Unlock()
	r.publish(ResourceEvent{Kind: model.KindSink, Name: s.Name})
}

func (r *Registry) DeleteSink(name string) {
	r.mu.Lock()
	delete(r.sinks, name)
	r.mu.Unlock()
	r.publish(ResourceEvent{Kind: model.KindSink, Name: name, Delete: true})
}

func (r *Registry) GetSink(name string) (model.Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[name]
	return s, ok
}

func (r *Registry) ListSinks() []model.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		out = append(out, s)
	}
	return out
}

// WorkflowSinkCycle reports whether admitting a "workflow"-typed Sink
// pointing from `fromWorkflow` to `toWorkflow` would create a cycle in
// the sink-triggered workflow chain graph.
func (r *Registry) WorkflowSinkCycle(fromWorkflow, toWorkflow string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := map[string]bool{fromWorkflow: true}
	queue := []string{toWorkflow}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			return true
		}
		visited[cur] = true

		wf, ok := r.workflows[cur]
		if !ok {
			continue
		}
		for _, sinkName := range wf.Sinks {
			sk, ok := r.sinks[sinkName]
			if !ok || sk.Type != model.SinkWorkflow || sk.Config.WorkflowName == "" {
				continue
			}
			queue = append(queue, sk.Config.WorkflowName)
		}
	}
	return false
}
