// Package engine implements the bounded workflow queue and worker pool
// that executes a Workflow's steps in order for a single WorkflowRun,
// persisting progress as it goes and dispatching to sinks on completion.
// Grounded on original_source/crates/operator/src/workflow/engine.rs's bounded mpsc
// channel + fixed worker-task pool, translated into a buffered Go channel
// drained by a fixed number of goroutines.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/triageops/controlplane/internal/executor"
	"github.com/triageops/controlplane/internal/logging"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
	"github.com/triageops/controlplane/internal/template"
)

var logger = logging.New("engine")

// SinkDispatcher is the narrow surface the engine needs from the sink
// package, kept as an interface for the same cyclic-ownership reason
// ingress.Engine and sink.WorkflowTrigger are interfaces: the engine
// triggers sink delivery, and a "workflow" sink triggers the engine back.
type SinkDispatcher interface {
	Dispatch(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any)
}

type job struct {
	run    *model.WorkflowRun
	wf     model.Workflow
	seed   map[string]any
	resume *resumeJob
}

// resumeJob carries the approval decision for a suspended run back into
// the worker pool; run.PendingApproval identifies exactly which step and
// tool call it resolves.
type resumeJob struct {
	decision model.ApprovalDecision
}

// Engine is a bounded queue plus a fixed pool of workers, each of which
// runs a WorkflowRun to completion sequentially, step by step.
type Engine struct {
	queue    chan job
	store    store.Store
	exec     *executor.Executor
	sinks    SinkDispatcher
	workers  int
	shutdown chan struct{}

	subsMu sync.Mutex
	subs   []chan *model.WorkflowRun
}

func New(st store.Store, exec *executor.Executor, sinks SinkDispatcher, queueCapacity, workers int) *Engine {
	if queueCapacity <= 0 {
		queueCapacity = 100
	}
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		queue:    make(chan job, queueCapacity),
		store:    st,
		exec:     exec,
		sinks:    sinks,
		workers:  workers,
		shutdown: make(chan struct{}),
	}
}

// SetSinks wires the sink dispatcher after construction, breaking the
// cyclic dependency between Engine and sink.Dispatcher: the dispatcher's
// constructor needs a WorkflowTrigger (the engine itself) before the
// engine can be given a SinkDispatcher.
func (e *Engine) SetSinks(sinks SinkDispatcher) {
	e.sinks = sinks
}

// Start launches the fixed worker pool. It returns immediately; workers
// run until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, i)
	}
}

func (e *Engine) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.queue:
			e.run(ctx, &j)
		}
	}
}

// Enqueue implements ingress.Engine (and sink.WorkflowTrigger): it admits
// a new run for async execution, rejecting with a BackpressureError if
// the queue is saturated rather than blocking the caller indefinitely.
func (e *Engine) Enqueue(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, seed map[string]any) error {
	seedRaw, err := json.Marshal(seed)
	if err != nil {
		return &model.ParseError{Source: "workflow seed", Reason: err.Error()}
	}
	run.Seed = seedRaw

	if err := e.store.SaveWorkflowRun(ctx, run); err != nil {
		return &model.StoreError{Op: "SaveWorkflowRun", Reason: err.Error()}
	}

	select {
	case e.queue <- job{run: run, wf: wf, seed: seed}:
		return nil
	default:
		return &model.BackpressureError{QueueDepth: len(e.queue), Capacity: cap(e.queue)}
	}
}

// ResumeRun submits a human's approval decision for a suspended run and
// re-queues it for execution, continuing from the step it suspended at
// instead of restarting the workflow. The caller supplies the run (with
// its persisted PendingApproval) and the Workflow it belongs to, since
// Engine holds neither a resource registry nor an index of suspended runs.
func (e *Engine) ResumeRun(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, decision model.ApprovalDecision) error {
	if run.Phase != model.RunSuspended || run.PendingApproval == nil {
		return &model.ValidationError{Field: "run", Reason: "run is not awaiting approval"}
	}

	select {
	case e.queue <- job{run: run, wf: wf, resume: &resumeJob{decision: decision}}:
		return nil
	default:
		return &model.BackpressureError{QueueDepth: len(e.queue), Capacity: cap(e.queue)}
	}
}

// run dispatches a queued job to a fresh or resumed execution path.
func (e *Engine) run(ctx context.Context, j *job) {
	if j.resume != nil {
		e.runResumed(ctx, j)
		return
	}
	e.runFresh(ctx, j)
}

// runFresh executes a Workflow's steps sequentially from the beginning
// against a newly dequeued WorkflowRun.
func (e *Engine) runFresh(ctx context.Context, j *job) {
	run := j.run
	now := time.Now()
	run.StartedAt = &now
	run.Phase = model.RunRunning
	e.persist(ctx, run)

	seedInput, err := toRawMessageMap(j.seed)
	if err != nil {
		e.fail(ctx, run, err)
		return
	}
	wctx := model.NewWorkflowContext(run.ID, seedInput)

	e.runSteps(ctx, run, j.wf, wctx, 0)
}

// runResumed re-enters a suspended run's step at the point it suspended,
// feeding the human decision back into the executor, then continues the
// remaining steps exactly as runFresh would have.
func (e *Engine) runResumed(ctx context.Context, j *job) {
	run := j.run
	pending := run.PendingApproval

	idx, ok := indexOfStep(j.wf, pending.StepName)
	if !ok {
		e.fail(ctx, run, &model.StepError{Step: pending.StepName, Kind: model.StepErrorExecution, Reason: "resumed step no longer exists in workflow definition"})
		return
	}

	wctx, err := reconstructContext(run)
	if err != nil {
		e.fail(ctx, run, err)
		return
	}

	run.Phase = model.RunRunning
	run.PendingApproval = nil
	e.persist(ctx, run)

	stepStart := time.Now()
	if idx < len(run.Steps) {
		stepStart = run.Steps[idx].StartedAt
	}
	outcome, err := e.exec.ResumeAgentStep(ctx, pending, j.resume.decision)
	result := model.StepResult{Name: pending.StepName, StartedAt: stepStart}
	completed := time.Now()
	result.CompletedAt = &completed

	if err != nil {
		result.Phase = model.RunFailed
		result.Error = err.Error()
		run.Steps = replaceOrAppendStep(run.Steps, idx, result)
		e.fail(ctx, run, err)
		return
	}

	if outcome.Suspend != nil {
		outcome.Suspend.RunID = run.ID
		result.Phase = model.RunSuspended
		run.Steps = replaceOrAppendStep(run.Steps, idx, result)
		run.Phase = model.RunSuspended
		run.PendingApproval = outcome.Suspend
		e.persist(ctx, run)
		logger.Printf("run %s re-suspended at step %q awaiting approval for tool %q", run.ID, pending.StepName, outcome.Suspend.ToolName)
		return
	}

	result.Phase = model.RunSucceeded
	result.Output = outcome.Output
	run.Steps = replaceOrAppendStep(run.Steps, idx, result)
	wctx = wctx.WithStepOutput(pending.StepName, outcome.Output)
	e.persist(ctx, run)

	e.runSteps(ctx, run, j.wf, wctx, idx+1)
}

// runSteps executes wf.Steps[from:] in order against run, halting at the
// first failure or suspension and persisting progress after every step.
// It is the shared tail of both a fresh run and a resumed one.
func (e *Engine) runSteps(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, wctx *model.WorkflowContext, from int) {
	for _, step := range wf.Steps[from:] {
		stepStart := time.Now()
		result := model.StepResult{Name: step.Name, Phase: model.RunRunning, StartedAt: stepStart}

		outcome, err := e.exec.ExecuteStep(ctx, step, wctx)
		completed := time.Now()
		result.CompletedAt = &completed

		if err != nil {
			result.Phase = model.RunFailed
			result.Error = err.Error()
			run.Steps = append(run.Steps, result)
			e.fail(ctx, run, err)
			return
		}

		if outcome.Suspend != nil {
			outcome.Suspend.RunID = run.ID
			result.Phase = model.RunSuspended
			run.Steps = append(run.Steps, result)
			run.Phase = model.RunSuspended
			run.PendingApproval = outcome.Suspend
			e.persist(ctx, run)
			logger.Printf("run %s suspended at step %q awaiting approval for tool %q", run.ID, step.Name, outcome.Suspend.ToolName)
			return
		}

		result.Phase = model.RunSucceeded
		result.Output = outcome.Output
		run.Steps = append(run.Steps, result)
		wctx = wctx.WithStepOutput(step.Name, outcome.Output)
		e.persist(ctx, run)
	}

	run.Outputs = e.renderOutputs(wf, wctx)
	run.Phase = model.RunSucceeded
	completed := time.Now()
	run.CompletedAt = &completed
	e.persist(ctx, run)

	data, _ := wctx.AsValue()
	if e.sinks != nil {
		e.sinks.Dispatch(ctx, run, wf, withRunOutputs(data, run))
	}
}

// indexOfStep finds a step by name, since WorkflowRun.Steps and
// Workflow.Steps are both ordered but resuming needs the position to know
// what's left to run.
func indexOfStep(wf model.Workflow, name string) (int, bool) {
	for i, s := range wf.Steps {
		if s.Name == name {
			return i, true
		}
	}
	return 0, false
}

// replaceOrAppendStep overwrites the StepResult recorded when the run
// suspended (at idx) with its resumed outcome, appending instead if for
// some reason no placeholder was recorded.
func replaceOrAppendStep(steps []model.StepResult, idx int, result model.StepResult) []model.StepResult {
	if idx < len(steps) {
		steps[idx] = result
		return steps
	}
	return append(steps, result)
}

// reconstructContext rebuilds a WorkflowContext from a persisted run's
// seed and already-recorded step outputs, so a resumed run can continue
// without re-deriving its triggering input.
func reconstructContext(run *model.WorkflowRun) (*model.WorkflowContext, error) {
	var seed map[string]json.RawMessage
	if len(run.Seed) > 0 {
		if err := json.Unmarshal(run.Seed, &seed); err != nil {
			return nil, &model.ParseError{Source: "workflow seed", Reason: err.Error()}
		}
	}
	wctx := model.NewWorkflowContext(run.ID, seed)
	for _, s := range run.Steps {
		if s.Phase == model.RunSucceeded {
			wctx = wctx.WithStepOutput(s.Name, s.Output)
		}
	}
	return wctx, nil
}

// withRunOutputs merges a run's rendered workflow outputs into the sink
// template context under "workflow", alongside the step data, so a sink
// template can reference a declared workflow output, not just raw step
// fields.
func withRunOutputs(data map[string]any, run *model.WorkflowRun) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	outputs := map[string]any{}
	for k, v := range run.Outputs {
		outputs[k] = v
	}
	data["workflow"] = map[string]any{
		"name":    run.WorkflowName,
		"status":  string(run.Phase),
		"outputs": outputs,
	}
	return data
}

func (e *Engine) fail(ctx context.Context, run *model.WorkflowRun, err error) {
	run.Phase = model.RunFailed
	run.Error = err.Error()
	completed := time.Now()
	run.CompletedAt = &completed
	e.persist(ctx, run)
	logger.Printf("run %s failed: %v", run.ID, err)
}

func (e *Engine) persist(ctx context.Context, run *model.WorkflowRun) {
	if err := e.store.UpdateWorkflowRun(ctx, run); err != nil {
		logger.Printf("failed to persist run %s: %v", run.ID, err)
	}
	e.broadcast(run)
}

// Subscribe returns a channel of run-status updates, one each time a run
// is persisted (start, each step, suspension, completion or failure),
// for the live GET /ws/runs stream. The channel is buffered so a
// slow reader cannot block a worker goroutine.
func (e *Engine) Subscribe() <-chan *model.WorkflowRun {
	ch := make(chan *model.WorkflowRun, 64)
	e.subsMu.Lock()
	e.subs = append(e.subs, ch)
	e.subsMu.Unlock()
	return ch
}

func (e *Engine) broadcast(run *model.WorkflowRun) {
	cp := *run
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- &cp:
		default:
		}
	}
}

func (e *Engine) renderOutputs(wf model.Workflow, wctx *model.WorkflowContext) map[string]string {
	if len(wf.Outputs) == 0 {
		return nil
	}
	data, err := wctx.AsValue()
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(wf.Outputs))
	for _, o := range wf.Outputs {
		val, err := template.EvalDisplay(o.Value, data)
		if err != nil {
			continue
		}
		out[o.Name] = val
	}
	return out
}

func toRawMessageMap(seed map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(seed))
	for k, v := range seed {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, &model.ParseError{Source: "workflow seed", Reason: err.Error()}
		}
		out[k] = b
	}
	return out, nil
}
