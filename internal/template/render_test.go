package template

import "testing"

func TestRender(t *testing.T) {
	data := map[string]any{
		"input": map[string]any{
			"alert": map[string]any{"alertname": "PodCrashLooping", "severity": "critical"},
		},
		"steps": map[string]any{
			"check": map[string]any{"restarts": float64(5), "items": []any{"a", "b"}},
		},
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"simple path", "alert={{ input.alert.alertname }}", "alert=PodCrashLooping"},
		{"numeric", "restarts={{ steps.check.restarts }}", "restarts=5"},
		{"array index", "first={{ steps.check.items.0 }}", "first=a"},
		{"default pipe on miss", "ns={{ input.alert.namespace | default \"unknown\" }}", "ns=unknown"},
		{"missing no default blanks", "ns={{ input.alert.namespace }}", "ns="},
		{"upper pipe", "sev={{ input.alert.severity | upper }}", "sev=CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.body, data); got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	data := map[string]any{"input": map[string]any{"x": "1"}}
	body := "{{ input.x }}-{{ input.x }}"
	a := Render(body, data)
	b := Render(body, data)
	if a != b || a != "1-1" {
		t.Fatalf("expected deterministic render, got %q and %q", a, b)
	}
}

func TestEvaluateCondition(t *testing.T) {
	data := map[string]any{"steps": map[string]any{"check": map[string]any{"status": "ok"}}}

	ok, err := EvaluateCondition("steps.check.status == ok", data)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}

	ok, err = EvaluateCondition("steps.check.status != ok", data)
	if err != nil || ok {
		t.Fatalf("expected false, got %v err=%v", ok, err)
	}

	if _, err := EvaluateCondition("too many tokens here", data); err == nil {
		t.Fatal("expected error for malformed condition")
	}
}
