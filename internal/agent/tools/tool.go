// Package tools implements the agent runtime's tool registry: kubectl,
// PromQL, curl/HTTP, and script tools, each implementing the Tool
// interface and validating its own input before execution. Grounded on
// original_source/crates/operator/src/agent/tools/{kubectl,promql,curl,script,mod}.rs.
package tools

import "context"

// Result is a tool invocation's outcome.
type Result struct {
	Success  bool
	Output   string
	Error    string
	Metadata map[string]string
}

// Tool is the capability surface every agent tool implements.
type Tool interface {
	Name() string
	Description() string
	// Validate checks a raw command/query string is well-formed and
	// permitted before Execute ever runs it.
	Validate(input string) error
	Execute(ctx context.Context, input string) (Result, error)
}

// Registry is a name-keyed set of tools available to a particular agent
// step, built from the step's `tools` list.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry(available ...Tool) *Registry {
	r := &Registry{byName: map[string]Tool{}}
	for _, t := range available {
		r.byName[t.Name()] = t
	}
	return r
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Subset returns a new Registry containing only the named tools (names
// not in r are skipped; no order is kept) — used to scope a step's
// `tools` list down from the full process-wide registry.
func (r *Registry) Subset(names []string) *Registry {
	sub := &Registry{byName: map[string]Tool{}}
	for _, n := range names {
		if t, ok := r.byName[n]; ok {
			sub.byName[n] = t
		}
	}
	return sub
}

func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	return out
}
