package model

import (
	"encoding/json"
	"time"
)

// RunPhase is a WorkflowRun's lifecycle phase.
type RunPhase string

const (
	RunPending   RunPhase = "pending"
	RunRunning   RunPhase = "running"
	RunSucceeded RunPhase = "succeeded"
	RunFailed    RunPhase = "failed"
	RunSuspended RunPhase = "suspended" // awaiting human approval
)

// StepResult is the recorded outcome of one executed WorkflowStep.
type StepResult struct {
	Name           string          `json:"name"`
	Phase          RunPhase        `json:"phase"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// WorkflowRun is one execution of a Workflow against a triggering Alert
// (or a manual/chained trigger).
type WorkflowRun struct {
	ID           string                 `json:"id"`
	WorkflowName string                 `json:"workflowName"`
	SourceName   string                 `json:"sourceName,omitempty"`
	AlertID      string                 `json:"alertId,omitempty"`
	Phase        RunPhase               `json:"phase"`
	Steps        []StepResult           `json:"steps"`
	Outputs      map[string]string      `json:"outputs,omitempty"`
	Error        string                 `json:"error,omitempty"`
	SinkResults  map[string]SinkResult  `json:"sinkResults,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	StartedAt    *time.Time             `json:"startedAt,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`

	// Seed is the triggering input (alert + source context) the run
	// was enqueued with, persisted so a suspended run can rebuild its
	// WorkflowContext on resume without re-deriving it from the alert.
	Seed json.RawMessage `json:"seed,omitempty"`

	// PendingApproval is set while Phase is RunSuspended and cleared
	// once the run is resumed, one way or the other.
	PendingApproval *PendingApproval `json:"pendingApproval,omitempty"`
}

// SinkResult records a single sink's delivery outcome for a run.
type SinkResult struct {
	Delivered bool      `json:"delivered"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// WorkflowContext is the immutable-by-convention accumulator threaded
// through step execution: a step may read any prior step's output but
// never mutate it, only append its own.
type WorkflowContext struct {
	RunID     string                     `json:"runId"`
	Input     map[string]json.RawMessage `json:"input"`
	StepsByName map[string]json.RawMessage `json:"stepsByName"`
}

// NewWorkflowContext seeds a context with the triggering input (e.g. the
// alert and source annotations), under the "alert" and "source" keys.
func NewWorkflowContext(runID string, input map[string]json.RawMessage) *WorkflowContext {
	return &WorkflowContext{
		RunID:       runID,
		Input:       input,
		StepsByName: map[string]json.RawMessage{},
	}
}

// WithStepOutput returns a NEW WorkflowContext with the given step's
// output recorded, leaving the receiver untouched. This is what gives
// step-output immutability: later steps see a snapshot, never a pointer
// into something concurrently mutated.
func (c *WorkflowContext) WithStepOutput(name string, output json.RawMessage) *WorkflowContext {
	next := &WorkflowContext{
		RunID:       c.RunID,
		Input:       c.Input,
		StepsByName: make(map[string]json.RawMessage, len(c.StepsByName)+1),
	}
	for k, v := range c.StepsByName {
		next.StepsByName[k] = v
	}
	next.StepsByName[name] = output
	return next
}

// AsValue flattens the context into the nested map the template
// interpreter walks: {"input": {...}, "steps": {name: output, ...}}.
func (c *WorkflowContext) AsValue() (map[string]any, error) {
	root := map[string]any{}

	input := map[string]any{}
	for k, raw := range c.Input {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		input[k] = v
	}
	root["input"] = input

	steps := map[string]any{}
	for k, raw := range c.StepsByName {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		steps[k] = v
	}
	root["steps"] = steps

	return root, nil
}
