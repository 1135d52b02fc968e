package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/triageops/controlplane/internal/agent/tools"
	"github.com/triageops/controlplane/internal/model"
)

// Runtime drives the bounded observe/decide/act investigation loop: ask
// the LLM provider for the next message, execute any tool call it
// requests (after safety validation), feed the result back, and repeat
// until the provider emits a final analysis or the iteration/time budget
// is exhausted. Grounded on original_source/crates/operator/src/agent/runtime.rs's
// state machine (next_step(conversation, iteration, pending_tool) -> Either
// <Suspend, Continue, Terminal>), translated from an enum match into a
// Go loop with an explicit outcome type.
//
// A run that hits an approval-gated tool call suspends instead of
// terminating: Resume re-enters the same loop at the iteration after the
// one that suspended, picking the conversation back up where Investigate left off,
// per original_source/crates/operator/src/agent/investigator.rs:529-567.
type Runtime struct {
	provider      LLMProvider
	safety        *SafetyValidator
	maxIterations int
	timeout       time.Duration
}

func NewRuntime(provider LLMProvider, safety *SafetyValidator, maxIterations int, timeout time.Duration) *Runtime {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &Runtime{provider: provider, safety: safety, maxIterations: maxIterations, timeout: timeout}
}

// Outcome tags what happened at the end of Investigate or Resume.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSuspended Outcome = "suspended"
	OutcomeFailed    Outcome = "failed"
)

// InvestigationReport is Runtime.Investigate's (and Runtime.Resume's)
// return value.
type InvestigationReport struct {
	Outcome  Outcome
	Result   model.AgentResult
	Approval *model.PendingApproval
	Err      error
}

// Investigate runs the loop for a single goal (e.g. "determine the root
// cause of PodCrashLooping on payment-service-7 and recommend a fix"),
// with the given tool registry scoped to the step's declared tools.
func (r *Runtime) Investigate(ctx context.Context, goal string, seed map[string]any, registry *tools.Registry, approvalRequired bool) InvestigationReport {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conversation := []Message{
		{Role: RoleSystem, Content: investigationSystemPrompt()},
		{Role: RoleUser, Content: investigationUserPrompt(goal, seed)},
	}

	return r.run(ctx, goal, conversation, 0, nil, registry, approvalRequired)
}

// Resume re-enters the loop a suspended investigation left off at: the
// conversation, iteration counter and tool-call ledger are restored
// verbatim from pending; on approval the withheld tool call's result is
// injected as the next observation before control returns to the normal
// observe/decide/act cycle.
//
// A denial terminates immediately with a non-empty error and no tool
// execution, matching investigator.rs:557-566's early return on
// !approved. An approval diverges from the original: rather than
// recording a no-op "human_approval" action, it actually executes the
// tool call that was withheld, since this runtime (unlike the original's
// text-only investigator) suspends *before* running a real tool rather
// than after describing one.
func (r *Runtime) Resume(ctx context.Context, pending *model.PendingApproval, decision model.ApprovalDecision, registry *tools.Registry) InvestigationReport {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conversation := fromConversationMessages(pending.Conversation)
	toolCalls := append([]model.ToolCall(nil), pending.ToolCalls...)

	if !decision.Approved {
		reason := "tool call denied by " + decision.Approver
		if decision.Feedback != "" {
			reason += ": " + decision.Feedback
		}
		return InvestigationReport{
			Outcome: OutcomeFailed,
			Err:     &model.StepError{Step: pending.StepName, Kind: model.StepErrorApproval, Reason: reason},
		}
	}

	conversation = r.executeApprovedToolCall(ctx, pending, conversation, &toolCalls, registry)

	return r.run(ctx, pending.Goal, conversation, pending.Iteration+1, toolCalls, registry, pending.ApprovalRequired)
}

// executeApprovedToolCall runs the single tool invocation that was
// withheld pending approval and appends its result as the next tool
// observation, mirroring the per-iteration tool-execution branch of run.
func (r *Runtime) executeApprovedToolCall(ctx context.Context, pending *model.PendingApproval, conversation []Message, toolCalls *[]model.ToolCall, registry *tools.Registry) []Message {
	tool, ok := registry.Get(pending.ToolName)
	if !ok {
		return append(conversation, Message{Role: RoleTool, Content: fmt.Sprintf("error: tool %q is not available for this step", pending.ToolName), ToolCallID: pending.ToolCallID})
	}
	// A human approved this call, so the destructive-verb rejection is
	// lifted; the length and dangerous-pattern checks still apply.
	approved := *r.safety
	approved.cfg.AllowDestructive = true
	if err := approved.Validate(pending.ToolInput); err != nil {
		return append(conversation, Message{Role: RoleTool, Content: "error: " + err.Error(), ToolCallID: pending.ToolCallID})
	}

	toolResult, err := tool.Execute(ctx, pending.ToolInput)
	call := model.ToolCall{
		ToolName:  pending.ToolName,
		Input:     pending.ToolInput,
		RiskLevel: pending.RiskLevel,
		Approved:  true,
		Timestamp: time.Now(),
	}
	if err != nil {
		call.Error = err.Error()
	} else if !toolResult.Success {
		call.Error = toolResult.Error
	} else {
		call.Output = toolResult.Output
	}
	*toolCalls = append(*toolCalls, call)

	feedback := toolResult.Output
	if !toolResult.Success {
		feedback = "error: " + toolResult.Error
	}
	return append(conversation, Message{Role: RoleTool, Content: feedback, ToolCallID: pending.ToolCallID})
}

// run is the shared observe/decide/act cycle: Investigate enters it at
// iteration 0 with a fresh conversation, Resume re-enters it at
// pending.Iteration+1 with the conversation restored plus the just-
// resolved tool call appended.
func (r *Runtime) run(ctx context.Context, goal string, conversation []Message, startIteration int, toolCalls []model.ToolCall, registry *tools.Registry, approvalRequired bool) InvestigationReport {
	toolDefs := make([]ToolDef, 0)
	for _, t := range registry.All() {
		toolDefs = append(toolDefs, ToolDef{Name: t.Name(), Description: t.Description()})
	}

	for iteration := startIteration; iteration < r.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return InvestigationReport{Outcome: OutcomeFailed, Err: fmt.Errorf("investigation timed out after %d iterations", iteration)}
		default:
		}

		completion, err := r.provider.Complete(ctx, conversation, toolDefs)
		if err != nil {
			return InvestigationReport{Outcome: OutcomeFailed, Err: &model.LLMProviderError{Provider: r.provider.Name(), Reason: err.Error()}}
		}
		conversation = append(conversation, completion.Message)

		invocation, isToolCall := nextToolInvocation(completion)
		if !isToolCall {
			result := ParseFinalAnalysis(completion.Message.Content)
			result.Iterations = iteration + 1
			result.ToolCalls = toolCalls
			return InvestigationReport{Outcome: OutcomeCompleted, Result: result}
		}

		tool, ok := registry.Get(invocation.Name)
		if !ok {
			conversation = append(conversation, Message{Role: RoleTool, Content: fmt.Sprintf("error: tool %q is not available for this step", invocation.Name), ToolCallID: invocation.ID})
			continue
		}

		if err := tool.Validate(invocation.Input); err != nil {
			conversation = append(conversation, Message{Role: RoleTool, Content: "error: " + err.Error(), ToolCallID: invocation.ID})
			continue
		}

		risk := r.safety.ClassifyRisk(invocation.Input)
		needsApproval := approvalRequired && r.safety.RequiresApproval(invocation.Input)
		if needsApproval {
			return InvestigationReport{
				Outcome: OutcomeSuspended,
				Approval: &model.PendingApproval{
					Goal:             goal,
					ToolCallID:       invocation.ID,
					ToolName:         invocation.Name,
					ToolInput:        invocation.Input,
					RiskLevel:        risk,
					RequestedAt:      time.Now(),
					ApprovalRequired: approvalRequired,
					Conversation:     toConversationMessages(conversation),
					Iteration:        iteration,
					ToolCalls:        toolCalls,
				},
			}
		}

		if err := r.safety.Validate(invocation.Input); err != nil {
			conversation = append(conversation, Message{Role: RoleTool, Content: "error: " + err.Error(), ToolCallID: invocation.ID})
			continue
		}

		toolResult, err := tool.Execute(ctx, invocation.Input)
		call := model.ToolCall{
			ToolName:  invocation.Name,
			Input:     invocation.Input,
			RiskLevel: risk,
			Approved:  true,
			Timestamp: time.Now(),
		}
		if err != nil {
			call.Error = err.Error()
		} else if !toolResult.Success {
			call.Error = toolResult.Error
		} else {
			call.Output = toolResult.Output
		}
		toolCalls = append(toolCalls, call)

		feedback := toolResult.Output
		if !toolResult.Success {
			feedback = "error: " + toolResult.Error
		}
		conversation = append(conversation, Message{Role: RoleTool, Content: feedback, ToolCallID: invocation.ID})
	}

	return InvestigationReport{Outcome: OutcomeFailed, Err: fmt.Errorf("exceeded max iterations (%d)", r.maxIterations)}
}

// toConversationMessages and fromConversationMessages translate between
// the provider-facing Message and the store-safe model.ConversationMessage,
// the latter living in package model to avoid an agent<->model import
// cycle (model.PendingApproval must carry a conversation, but package
// agent already imports package model).
func toConversationMessages(msgs []Message) []model.ConversationMessage {
	out := make([]model.ConversationMessage, len(msgs))
	for i, m := range msgs {
		var calls []model.ConversationToolCall
		for _, tc := range m.ToolCalls {
			calls = append(calls, model.ConversationToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		out[i] = model.ConversationMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  calls,
			ToolCallID: m.ToolCallID,
		}
	}
	return out
}

func fromConversationMessages(msgs []model.ConversationMessage) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		var calls []ToolInvocation
		for _, tc := range m.ToolCalls {
			calls = append(calls, ToolInvocation{ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		out[i] = Message{
			Role:       Role(m.Role),
			Content:    m.Content,
			ToolCalls:  calls,
			ToolCallID: m.ToolCallID,
		}
	}
	return out
}

// nextToolInvocation reports whether the assistant's message requested a
// tool call, and returns the first one. This codebase's providers encode
// a tool call as a message whose content begins with "TOOL: <name> <input>"
// rather than a structured field, keeping the Completion type provider-
// agnostic across Anthropic/OpenAI/Mock.
func nextToolInvocation(c Completion) (ToolInvocation, bool) {
	const prefix = "TOOL: "
	content := c.Message.Content
	if len(content) < len(prefix) || content[:len(prefix)] != prefix {
		return ToolInvocation{}, false
	}
	rest := content[len(prefix):]
	for i, ch := range rest {
		if ch == ' ' {
			return ToolInvocation{Name: rest[:i], Input: rest[i+1:]}, true
		}
	}
	return ToolInvocation{Name: rest}, true
}

func investigationSystemPrompt() string {
	return "You are an incident investigation agent. Use the available tools to gather " +
		"evidence, then respond with a final analysis in exactly this format:\n" +
		"ROOT CAUSE: <one line>\nFINDINGS:\n- <bullet>\nRECOMMENDATIONS:\n- <bullet>\nAUTO-FIX: <command or no>"
}

func investigationUserPrompt(goal string, seed map[string]any) string {
	return fmt.Sprintf("Goal: %s\nContext: %v", goal, seed)
}
