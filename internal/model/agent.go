package model

import "time"

// RiskLevel classifies the potential impact of a tool invocation. The
// original Rust source defines this inconsistently across behavior.rs
// (4 variants) and safety.rs (3 variants); this module standardizes on
// the 3-level scheme the safety gate actually enforces against.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ToolCall records one tool invocation made during an agent iteration.
type ToolCall struct {
	ToolName  string    `json:"toolName"`
	Input     string    `json:"input"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Approved  bool      `json:"approved"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentResult is the structured outcome of a completed investigation,
// parsed from the final LLM message's ROOT CAUSE / FINDINGS /
// RECOMMENDATIONS / AUTO-FIX sections.
type AgentResult struct {
	RootCause       string            `json:"rootCause"`
	Findings        []string          `json:"findings"`
	Recommendations []string          `json:"recommendations"`
	AutoFixProposed bool              `json:"autoFixProposed"`
	AutoFixCommand  string            `json:"autoFixCommand,omitempty"`
	Iterations      int               `json:"iterations"`
	ToolCalls       []ToolCall        `json:"toolCalls"`
	SimilarIncidents []SimilarIncident `json:"similarIncidents,omitempty"`
	RawResponse     string            `json:"rawResponse"`
	// Error is set instead of the above fields when the investigation
	// terminated without a result, e.g. a denied approval.
	Error string `json:"error,omitempty"`
}

// SimilarIncident is a nearest-neighbor match from the embedding index.
type SimilarIncident struct {
	RunID    string  `json:"runId"`
	Distance float32 `json:"distance"`
	Summary  string  `json:"summary"`
}

// ConversationToolCall is the tool call an assistant turn requested,
// before it has been executed or judged.
type ConversationToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// ConversationMessage is a plain, store-safe copy of an agent/LLM
// conversation turn. It mirrors agent.Message's shape without importing
// package agent, which itself imports model.
type ConversationMessage struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCalls  []ConversationToolCall `json:"toolCalls,omitempty"`
	ToolCallID string                 `json:"toolCallId,omitempty"`
}

// PendingApproval describes a suspended agent run awaiting a human
// decision on a specific proposed tool call. It carries everything the
// runtime needs to reconstitute the investigation loop verbatim on
// resume: the full message history, the iteration counter, and the
// unresolved tool call itself.
type PendingApproval struct {
	RunID       string    `json:"runId"`
	StepName    string    `json:"stepName"`
	Goal        string    `json:"goal"`
	ToolCallID  string    `json:"toolCallId"`
	ToolName    string    `json:"toolName"`
	ToolInput   string    `json:"toolInput"`
	ToolNames   []string  `json:"toolNames"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	RequestedAt time.Time `json:"requestedAt"`

	ApprovalRequired bool                   `json:"approvalRequired"`
	Conversation     []ConversationMessage  `json:"conversation"`
	Iteration        int                    `json:"iteration"`
	ToolCalls        []ToolCall             `json:"toolCalls"`

	// ThenAgentStep marks a suspension that originated from a
	// conditional step's then_agent, not from a top-level agent step.
	// On resume the result is re-wrapped under {"matched": true, ...}
	// instead of being the step output directly.
	ThenAgentStep bool `json:"thenAgentStep,omitempty"`
}

// ApprovalDecision is the human response that resumes a suspended run.
type ApprovalDecision struct {
	Approved bool   `json:"approved"`
	Approver string `json:"approver"`
	Feedback string `json:"feedback,omitempty"`
}
