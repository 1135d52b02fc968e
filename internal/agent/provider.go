// Package agent implements the bounded LLM investigation loop: an
// observe/decide/act cycle over a tool registry, gated by a safety
// validator, producing a structured AgentResult. Grounded on
// original_source's src/agent/{behavior,runtime,safety,provider,result}.rs,
// with the Anthropic client hand-rolled in the teacher's raw-HTTP client
// idiom (internal/client/agent.go) since no Anthropic Go SDK exists
// anywhere in this codebase's dependency ancestry.
package agent

import (
	"context"
)

// Role is a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDef describes a callable tool to the LLM.
type ToolDef struct {
	Name        string
	Description string
}

// ToolInvocation is a tool call the LLM decided to make.
type ToolInvocation struct {
	ID    string
	Name  string
	Input string
}

// Message is one turn of the conversation sent to / received from an
// LLM provider.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolInvocation // set on assistant messages that call tools
	ToolCallID  string           // set on tool-result messages
}

// Completion is what a provider returns for one "observe" step.
type Completion struct {
	Message    Message
	StopReason string // "end_turn", "tool_use", "max_tokens"
}

// LLMProvider is the single capability the agent runtime depends on: turn
// a conversation (plus the available tools) into the next message. Every
// provider (Anthropic, OpenAI, Mock) implements only this.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDef) (Completion, error)
	Name() string
}
