// Package sink implements WorkflowRun result delivery: each declarative
// Sink resource is built into a concrete Sink implementation and sent to,
// fire-and-forget, with bounded exponential-backoff retry. Grounded on
// the teacher's internal/client/slack.go + slack_alert.go (Slack delivery
// idiom, generalized from alert-status messages to run-result messages)
// and internal/service/webhook_delivery.go (generic HTTP POST delivery,
// per-target failure isolation, log-and-continue), and on
// original_source/crates/operator/src/sinks/mod.rs's Sink trait + dispatch-by-type.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/triageops/controlplane/internal/logging"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
	"github.com/triageops/controlplane/internal/template"
)

const maxDeliveryAttempts = 3

var logger = logging.New("sink")

// Sink is the capability every delivery target implements.
type Sink interface {
	Send(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) error
}

// WorkflowTrigger is the narrow surface a "workflow" sink needs to chain
// into the next run, mirroring ingress.Engine's cyclic-ownership design:
// sink depends on this interface, not on the engine package directly.
type WorkflowTrigger interface {
	Enqueue(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, seed map[string]any) error
}

// Dispatcher builds and invokes the Sinks named by a Workflow, recording
// each attempt's outcome onto the run and the Sink resource's status.
type Dispatcher struct {
	reg     *registry.Registry
	store   store.Store
	trigger WorkflowTrigger
}

func NewDispatcher(reg *registry.Registry, st store.Store, trigger WorkflowTrigger) *Dispatcher {
	return &Dispatcher{reg: reg, store: st, trigger: trigger}
}

// Dispatch fires one goroutine per sink named by wf.Sinks. It does not
// block the caller; results land on run.SinkResults and are persisted as
// each delivery completes.
func (d *Dispatcher) Dispatch(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) {
	for _, name := range wf.Sinks {
		name := name
		go d.dispatchOne(ctx, run, wf, name, data)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, sinkName string, data map[string]any) {
	res, ok := d.reg.GetSink(sinkName)
	if !ok {
		logger.Printf("run %s: sink %q not found, skipping", run.ID, sinkName)
		return
	}

	if res.Condition != "" {
		matched, err := template.EvaluateCondition(res.Condition, data)
		if err != nil {
			logger.Printf("run %s: sink %q condition error: %v", run.ID, sinkName, err)
			return
		}
		if !matched {
			return
		}
	}

	impl, err := d.build(res)
	if err != nil {
		logger.Printf("run %s: sink %q build error: %v", run.ID, sinkName, err)
		return
	}

	result := model.SinkResult{}
	var sendErr error
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		sendErr = impl.Send(ctx, run, wf, data)
		result.Attempts = attempt
		if sendErr == nil {
			result.Delivered = true
			break
		}
		if attempt == maxDeliveryAttempts {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		select {
		case <-ctx.Done():
			sendErr = ctx.Err()
			attempt = maxDeliveryAttempts
		case <-time.After(backoff):
		}
	}

	result.SentAt = time.Now()
	if sendErr != nil {
		result.Error = sendErr.Error()
		logger.Printf("run %s: sink %q delivery failed after %d attempts: %v", run.ID, sinkName, result.Attempts, sendErr)
	}

	d.recordRunResult(ctx, run.ID, sinkName, result)
	d.recordSinkStatus(res, sendErr)
}

func (d *Dispatcher) recordRunResult(ctx context.Context, runID, sinkName string, result model.SinkResult) {
	stored, err := d.store.GetWorkflowRun(ctx, runID)
	if err != nil || stored == nil {
		return
	}
	if stored.SinkResults == nil {
		stored.SinkResults = map[string]model.SinkResult{}
	}
	stored.SinkResults[sinkName] = result
	_ = d.store.UpdateWorkflowRun(ctx, stored)
}

func (d *Dispatcher) recordSinkStatus(res model.Sink, sendErr error) {
	now := time.Now()
	res.Status.LastSentTime = &now
	if sendErr != nil {
		res.Status.LastError = sendErr.Error()
		res.Status.Ready = false
	} else {
		res.Status.MessagesSent++
		res.Status.LastError = ""
		res.Status.Ready = true
	}
	d.reg.PutSink(res)
}

func (d *Dispatcher) build(res model.Sink) (Sink, error) {
	switch res.Type {
	case model.SinkStdout:
		return newStdoutSink(res.Config), nil
	case model.SinkSlack:
		return newSlackSink(res.Config), nil
	case model.SinkAlertManager, model.SinkPagerDuty, model.SinkJira:
		return newHTTPSink(res.Type, res.Config), nil
	case model.SinkPrometheus:
		return newPrometheusSink(res.Config), nil
	case model.SinkWorkflow:
		return newWorkflowSink(res.Config, d.reg, d.trigger), nil
	default:
		return nil, fmt.Errorf("unsupported sink type %q", res.Type)
	}
}

// runSummary renders the minimal JSON-able view of a run most sinks
// template against: its phase, workflow, and final step outputs.
func runSummary(run *model.WorkflowRun, wf model.Workflow, data map[string]any) map[string]any {
	return map[string]any{
		"runId":        run.ID,
		"workflowName": wf.Name,
		"phase":        string(run.Phase),
		"alertId":      run.AlertID,
		"error":        run.Error,
		"data":         data,
	}
}

func marshalCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
