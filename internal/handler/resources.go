package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

// ResourceHandler implements CRUD over the three declarative resource
// kinds (Source, Workflow, Sink): a write persists the resource to the
// Store and upserts it into the Registry, which wakes the matching
// controller's reconcile loop via Registry.Subscribe.
type ResourceHandler struct {
	reg *registry.Registry
	st  store.Store
}

func NewResourceHandler(reg *registry.Registry, st store.Store) *ResourceHandler {
	return &ResourceHandler{reg: reg, st: st}
}

// ListSources godoc
// @Summary List Source resources
// @Tags sources
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Source
// @Router /api/v1/sources [get]
func (h *ResourceHandler) ListSources(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.ListSources())
}

// GetSource godoc
// @Summary Get a Source resource
// @Tags sources
// @Produce json
// @Security BearerAuth
// @Param name path string true "Source name"
// @Success 200 {object} model.Source
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/sources/{name} [get]
func (h *ResourceHandler) GetSource(c *gin.Context) {
	s, ok := h.reg.GetSource(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// PutSource godoc
// @Summary Create or update a Source resource
// @Tags sources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Source name"
// @Param request body model.Source true "Source spec"
// @Success 200 {object} model.Source
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/sources/{name} [put]
func (h *ResourceHandler) PutSource(c *gin.Context) {
	var s model.Source
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	s.Name = c.Param("name")
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	if existing, ok := h.reg.SourceByWebhookPath(s.Webhook.Path); ok && existing.Name != s.Name && s.Type == model.SourceWebhook {
		c.JSON(http.StatusConflict, gin.H{"error": "webhook path already in use by " + existing.Name})
		return
	}

	raw, err := json.Marshal(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}
	if err := h.st.SaveResource(c.Request.Context(), model.KindSource, s.Name, raw); err != nil {
		writeStoreError(c, err)
		return
	}
	h.reg.PutSource(s)
	c.JSON(http.StatusOK, s)
}

// DeleteSource godoc
// @Summary Delete a Source resource
// @Tags sources
// @Security BearerAuth
// @Param name path string true "Source name"
// @Success 204
// @Router /api/v1/sources/{name} [delete]
func (h *ResourceHandler) DeleteSource(c *gin.Context) {
	name := c.Param("name")
	if err := h.st.DeleteResource(c.Request.Context(), model.KindSource, name); err != nil {
		writeStoreError(c, err)
		return
	}
	h.reg.DeleteSource(name)
	c.Status(http.StatusNoContent)
}

// ListWorkflows godoc
// @Summary List Workflow resources
// @Tags workflows
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Workflow
// @Router /api/v1/workflows [get]
func (h *ResourceHandler) ListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.ListWorkflows())
}

// GetWorkflow godoc
// @Summary Get a Workflow resource
// @Tags workflows
// @Produce json
// @Security BearerAuth
// @Param name path string true "Workflow name"
// @Success 200 {object} model.Workflow
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/workflows/{name} [get]
func (h *ResourceHandler) GetWorkflow(c *gin.Context) {
	w, ok := h.reg.GetWorkflow(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// PutWorkflow godoc
// @Summary Create or update a Workflow resource
// @Tags workflows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Workflow name"
// @Param request body model.Workflow true "Workflow spec"
// @Success 200 {object} model.Workflow
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/workflows/{name} [put]
func (h *ResourceHandler) PutWorkflow(c *gin.Context) {
	var w model.Workflow
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	w.Name = c.Param("name")
	if err := validateStepNamesUnique(w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	raw, err := json.Marshal(w)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}
	if err := h.st.SaveResource(c.Request.Context(), model.KindWorkflow, w.Name, raw); err != nil {
		writeStoreError(c, err)
		return
	}
	h.reg.PutWorkflow(w)
	c.JSON(http.StatusOK, w)
}

// DeleteWorkflow godoc
// @Summary Delete a Workflow resource
// @Tags workflows
// @Security BearerAuth
// @Param name path string true "Workflow name"
// @Success 204
// @Router /api/v1/workflows/{name} [delete]
func (h *ResourceHandler) DeleteWorkflow(c *gin.Context) {
	name := c.Param("name")
	if err := h.st.DeleteResource(c.Request.Context(), model.KindWorkflow, name); err != nil {
		writeStoreError(c, err)
		return
	}
	h.reg.DeleteWorkflow(name)
	c.Status(http.StatusNoContent)
}

// ListSinks godoc
// @Summary List Sink resources
// @Tags sinks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Sink
// @Router /api/v1/sinks [get]
func (h *ResourceHandler) ListSinks(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.ListSinks())
}

// GetSink godoc
// @Summary Get a Sink resource
// @Tags sinks
// @Produce json
// @Security BearerAuth
// @Param name path string true "Sink name"
// @Success 200 {object} model.Sink
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/sinks/{name} [get]
func (h *ResourceHandler) GetSink(c *gin.Context) {
	s, ok := h.reg.GetSink(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sink not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// PutSink godoc
// @Summary Create or update a Sink resource
// @Tags sinks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Sink name"
// @Param request body model.Sink true "Sink spec"
// @Success 200 {object} model.Sink
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/sinks/{name} [put]
func (h *ResourceHandler) PutSink(c *gin.Context) {
	var s model.Sink
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	s.Name = c.Param("name")

	if s.Type == model.SinkWorkflow && s.Config.WorkflowName != "" {
		for _, w := range h.reg.ListWorkflows() {
			for _, sinkName := range w.Sinks {
				if sinkName == s.Name && h.reg.WorkflowSinkCycle(w.Name, s.Config.WorkflowName) {
					c.JSON(http.StatusBadRequest, gin.H{"error": "sink would create a workflow trigger cycle"})
					return
				}
			}
		}
	}

	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	raw, err := json.Marshal(s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}
	if err := h.st.SaveResource(c.Request.Context(), model.KindSink, s.Name, raw); err != nil {
		writeStoreError(c, err)
		return
	}
	h.reg.PutSink(s)
	c.JSON(http.StatusOK, s)
}

// DeleteSink godoc
// @Summary Delete a Sink resource
// @Tags sinks
// @Security BearerAuth
// @Param name path string true "Sink name"
// @Success 204
// @Router /api/v1/sinks/{name} [delete]
func (h *ResourceHandler) DeleteSink(c *gin.Context) {
	name := c.Param("name")
	if err := h.st.DeleteResource(c.Request.Context(), model.KindSink, name); err != nil {
		writeStoreError(c, err)
		return
	}
	h.reg.DeleteSink(name)
	c.Status(http.StatusNoContent)
}

func validateStepNamesUnique(w model.Workflow) error {
	seen := make(map[string]bool, len(w.Steps))
	for _, step := range w.Steps {
		if seen[step.Name] {
			return &model.ValidationError{Field: "steps", Reason: "duplicate step name " + step.Name}
		}
		seen[step.Name] = true
	}
	return nil
}

func writeStoreError(c *gin.Context, err error) {
	var notFound *model.NotFoundError
	var validation *model.ValidationError
	var backpressure *model.BackpressureError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &backpressure):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
