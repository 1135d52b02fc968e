package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/triageops/controlplane/internal/agent/tools"
	"github.com/triageops/controlplane/internal/auth"
	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/engine"
	"github.com/triageops/controlplane/internal/executor"
	"github.com/triageops/controlplane/internal/ingress"
	"github.com/triageops/controlplane/internal/metrics"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, store.Store, *auth.Service) {
	t.Helper()

	st := store.NewMemoryStore()
	reg := registry.New(st)

	authSvc, err := auth.NewService(st, config.AuthConfig{
		JWTSecret:     "test-secret",
		JWTAccessTTL:  "15m",
		JWTRefreshTTL: "168h",
		AllowSignup:   "true",
		CookieSecure:  "false",
	})
	if err != nil {
		t.Fatalf("build auth service: %v", err)
	}

	exec := executor.New(noopCLIRunner{}, executor.AgentDispatch{Registry: tools.NewRegistry()})
	eng := engine.New(st, exec, nil, 10, 1)
	ing := ingress.NewDispatcher(reg, st, eng, 0)

	return NewRouter(Deps{
		Auth:      authSvc,
		Registry:  reg,
		Store:     st,
		Ingress:   ing,
		Metrics:   metrics.New(),
		RunStream: eng,
		Engine:    eng,
	}, []string{"*"}), st, authSvc
}

type noopCLIRunner struct{}

func (noopCLIRunner) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	return "", nil
}

func TestPingAndRoot(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /ping: got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /: got %d", rec.Code)
	}
}

func TestAuthRegisterLoginAndMe(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{"id": "alice", "password": "hunter2hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: got %d body=%s", rec.Code, rec.Body.String())
	}

	var reg struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if reg.AccessToken == "" {
		t.Fatal("expected a non-empty access token")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestWorkflowCRUDRequiresAuthAndRejectsDuplicateStepNames(t *testing.T) {
	router, _, authSvc := newTestRouter(t)
	ctx := context.Background()

	access, _, _, err := authSvc.Register(ctx, "bob", "hunter2hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	wf := model.Workflow{
		Name: "diagnose",
		Steps: []model.WorkflowStep{
			{Name: "step1", Kind: model.StepCLI, Command: "echo hi"},
		},
	}
	body, _ := json.Marshal(wf)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/workflows/diagnose", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/workflows/diagnose", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put workflow: got %d body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/workflows/diagnose", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get workflow: got %d", rec.Code)
	}

	dup := model.Workflow{
		Name: "diagnose",
		Steps: []model.WorkflowStep{
			{Name: "step1", Kind: model.StepCLI, Command: "echo hi"},
			{Name: "step1", Kind: model.StepCLI, Command: "echo bye"},
		},
	}
	body, _ = json.Marshal(dup)
	req = httptest.NewRequest(http.MethodPut, "/api/v1/workflows/diagnose", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate step names, got %d body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/workflows/diagnose", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete workflow: got %d", rec.Code)
	}
}

func TestWebhookWithUnknownPathReturnsNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, _ := json.Marshal(model.AlertmanagerWebhook{Alerts: []model.AlertmanagerAlert{}})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/does-not-exist", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unregistered webhook path, got %d body=%s", rec.Code, rec.Body.String())
	}
}
