package agent

import (
	"context"
	"testing"
	"time"

	"github.com/triageops/controlplane/internal/agent/tools"
)

func TestInvestigatePodCrashLoopingMockScenario(t *testing.T) {
	rt := NewRuntime(NewMockProvider(), NewSafetyValidator(DefaultSafetyConfig()), 10, 5*time.Second)
	reg := tools.NewRegistry()

	report := rt.Investigate(context.Background(), "investigate PodCrashLooping", map[string]any{"alertname": "PodCrashLooping"}, reg, true)

	if report.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %v (err=%v)", report.Outcome, report.Err)
	}
	if report.Result.RootCause != "OOM" {
		t.Fatalf("expected root cause OOM, got %q", report.Result.RootCause)
	}
	if len(report.Result.Findings) != 1 || report.Result.Findings[0] != "restarts 5" {
		t.Fatalf("unexpected findings: %v", report.Result.Findings)
	}
	if report.Result.AutoFixProposed {
		t.Fatalf("expected no auto-fix proposed")
	}
}

func TestParseFinalAnalysisSections(t *testing.T) {
	raw := "ROOT CAUSE: disk full\n" +
		"FINDINGS:\n- /var at 98%\n- log rotation disabled\n" +
		"RECOMMENDATIONS:\n- enable logrotate\n" +
		"AUTO-FIX: systemctl restart logrotate.timer"

	result := ParseFinalAnalysis(raw)
	if result.RootCause != "disk full" {
		t.Fatalf("root cause = %q", result.RootCause)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("findings = %v", result.Findings)
	}
	if !result.AutoFixProposed || result.AutoFixCommand != "systemctl restart logrotate.timer" {
		t.Fatalf("auto-fix not parsed correctly: %+v", result)
	}
}

func TestSafetyValidatorGatesDestructiveVerbs(t *testing.T) {
	v := NewSafetyValidator(DefaultSafetyConfig())

	if !v.RequiresApproval("kubectl delete pod payment-service-7") {
		t.Fatal("expected delete to require approval")
	}
	if v.RequiresApproval("kubectl get pods") {
		t.Fatal("did not expect get to require approval")
	}
	if err := v.Validate("kubectl delete namespace production"); err == nil {
		t.Fatal("expected dangerous pattern to be rejected")
	}
	if err := v.Validate("rm -rf /"); err == nil {
		t.Fatal("expected rm -rf to be rejected")
	}
}
