package tools

import (
	"context"
	"fmt"
)

// ScriptTool runs a named, pre-registered diagnostic script (never an
// arbitrary shell command) and returns its canned output, grounded on
// original_source/crates/operator/src/agent/tools/script.rs's intent of exposing a small,
// operator-curated set of runbook scripts to the agent rather than letting
// it execute arbitrary code.
type ScriptTool struct {
	scripts map[string]func(ctx context.Context, args string) (string, error)
}

func NewScriptTool(scripts map[string]func(ctx context.Context, args string) (string, error)) *ScriptTool {
	return &ScriptTool{scripts: scripts}
}

func (t *ScriptTool) Name() string { return "script" }

func (t *ScriptTool) Description() string {
	return "Run one of the operator-registered diagnostic scripts, identified by name."
}

func (t *ScriptTool) Validate(input string) error {
	name, _, _ := splitScriptInput(input)
	if _, ok := t.scripts[name]; !ok {
		return fmt.Errorf("unknown script %q", name)
	}
	return nil
}

func (t *ScriptTool) Execute(ctx context.Context, input string) (Result, error) {
	name, args, _ := splitScriptInput(input)
	fn, ok := t.scripts[name]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown script %q", name)}, nil
	}
	out, err := fn(ctx, args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	return Result{Success: true, Output: out}, nil
}

func splitScriptInput(input string) (name, args string, ok bool) {
	for i, r := range input {
		if r == ' ' {
			return input[:i], input[i+1:], true
		}
	}
	return input, "", false
}
