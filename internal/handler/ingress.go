package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/triageops/controlplane/internal/ingress"
	"github.com/triageops/controlplane/internal/model"
)

// IngressHandler receives Alertmanager webhook payloads and forwards
// them to the ingress dispatcher for filtering, deduplication, and
// workflow enqueueing.
type IngressHandler struct {
	dispatcher *ingress.Dispatcher
}

func NewIngressHandler(d *ingress.Dispatcher) *IngressHandler {
	return &IngressHandler{dispatcher: d}
}

// Webhook godoc
// @Summary Receive an Alertmanager webhook
// @Tags ingress
// @Accept json
// @Produce json
// @Param path path string true "Webhook path registered on a Source"
// @Param request body model.AlertmanagerWebhook true "Alertmanager v2 payload"
// @Success 200 {object} map[string]int
// @Failure 404 {object} model.ErrorResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /webhooks/{path} [post]
func (h *IngressHandler) Webhook(c *gin.Context) {
	var payload model.AlertmanagerWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alertmanager payload"})
		return
	}

	admitted, rejected, err := h.dispatcher.HandleWebhook(c.Request.Context(), c.Param("path"), payload)
	if err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"admitted": admitted, "rejected": rejected})
}
