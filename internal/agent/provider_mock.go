package agent

import (
	"context"
	"strings"
)

// MockProvider returns deterministic, scripted responses keyed by the
// first known alert name found in the conversation's user messages, as
// original_source/crates/operator/src/agent/runtime.rs's mock_investigation_response does
// for its hermetic end-to-end tests. Unrecognized alert names fall back to
// a generic "no root cause determined" response rather than erroring, so
// new test fixtures can exercise the parser without needing a script.
type MockProvider struct {
	scripts map[string]string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		scripts: map[string]string{
			"PodCrashLooping": "ROOT CAUSE: OOM\n" +
				"FINDINGS:\n- restarts 5\n" +
				"RECOMMENDATIONS:\n- increase memory\n" +
				"AUTO-FIX: no",
			"HighCPUUsage": "ROOT CAUSE: runaway goroutine leak in payment-service\n" +
				"FINDINGS:\n- cpu pinned at 100% for 12m\n- no corresponding traffic increase\n" +
				"RECOMMENDATIONS:\n- roll back last deploy\n- add goroutine count alerting\n" +
				"AUTO-FIX: no",
		},
	}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(_ context.Context, messages []Message, _ []ToolDef) (Completion, error) {
	alertName := extractAlertName(messages)

	script, ok := p.scripts[alertName]
	if !ok {
		script = "ROOT CAUSE: unknown\n" +
			"FINDINGS:\n- no matching investigation script\n" +
			"RECOMMENDATIONS:\n- escalate to on-call\n" +
			"AUTO-FIX: no"
	}

	return Completion{
		Message:    Message{Role: RoleAssistant, Content: script},
		StopReason: "end_turn",
	}, nil
}

func extractAlertName(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		for _, name := range []string{"PodCrashLooping", "HighCPUUsage"} {
			if strings.Contains(m.Content, name) {
				return name
			}
		}
	}
	return ""
}
