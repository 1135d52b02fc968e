package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/triageops/controlplane/internal/model"
)

func TestObserveRunPhaseExposedOnMetricsEndpoint(t *testing.T) {
	reg := New()
	reg.ObserveRunPhase("diagnose", model.RunSucceeded)
	reg.ObserveToolInvocation("kubectl_logs", "ok")
	reg.ObserveSinkDelivery("console", "ok")
	reg.QueueDepth.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`triageops_workflow_runs_total{phase="succeeded",workflow="diagnose"} 1`,
		`triageops_tool_invocations_total{outcome="ok",tool="kubectl_logs"} 1`,
		`triageops_sink_deliveries_total{outcome="ok",sink="console"} 1`,
		`triageops_workflow_queue_depth 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
