package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
)

// WorkflowLookup is the narrow surface runs.go needs from the resource
// registry to resolve a run's Workflow definition when resuming it.
type WorkflowLookup interface {
	GetWorkflow(name string) (model.Workflow, bool)
}

// RunResumer is the narrow surface runs.go needs from the workflow
// engine to feed an approval decision back into a suspended run.
type RunResumer interface {
	ResumeRun(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, decision model.ApprovalDecision) error
}

// RunHandler serves read-only status over WorkflowRuns, for dashboards
// and the live GET /ws/runs stream's initial-state fetch, plus the
// approval endpoint that resumes a suspended run.
type RunHandler struct {
	st      store.Store
	reg     WorkflowLookup
	resumer RunResumer
}

func NewRunHandler(st store.Store, reg WorkflowLookup, resumer RunResumer) *RunHandler {
	return &RunHandler{st: st, reg: reg, resumer: resumer}
}

// Get godoc
// @Summary Get a WorkflowRun's status
// @Tags runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} model.WorkflowRun
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.st.GetWorkflowRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// List godoc
// @Summary List WorkflowRuns for a workflow
// @Tags runs
// @Produce json
// @Security BearerAuth
// @Param workflow query string false "Workflow name filter"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {array} model.WorkflowRun
// @Router /api/v1/runs [get]
func (h *RunHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.st.ListWorkflowRuns(c.Request.Context(), c.Query("workflow"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	if runs == nil {
		runs = []*model.WorkflowRun{}
	}
	c.JSON(http.StatusOK, runs)
}

// Approve godoc
// @Summary Resume a suspended WorkflowRun with a human approval decision
// @Tags runs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param decision body model.ApprovalDecision true "Approval decision"
// @Success 202 {object} model.WorkflowRun
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/runs/{id}/approval [post]
func (h *RunHandler) Approve(c *gin.Context) {
	run, err := h.st.GetWorkflowRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	var decision model.ApprovalDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, ok := h.reg.GetWorkflow(run.WorkflowName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}

	if err := h.resumer.ResumeRun(c.Request.Context(), run, wf, decision); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}
