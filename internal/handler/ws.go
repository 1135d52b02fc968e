package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/triageops/controlplane/internal/auth"
	"github.com/triageops/controlplane/internal/logging"
	"github.com/triageops/controlplane/internal/model"
)

var wsLogger = logging.New("ws")

// RunStream is the narrow surface ws.go needs from the workflow engine.
type RunStream interface {
	Subscribe() <-chan *model.WorkflowRun
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// WSHandler streams live WorkflowRun status updates to any connected
// client, one JSON frame each time a run is persisted, across every run
// in flight.
// Authenticated via a ?token= query parameter rather than the usual
// Authorization header, since browsers can't set custom headers on the
// WebSocket handshake.
type WSHandler struct {
	engine RunStream
	auth   *auth.Service
}

func NewWSHandler(engine RunStream, authSvc *auth.Service) *WSHandler {
	return &WSHandler{engine: engine, auth: authSvc}
}

// Runs godoc
// @Summary Stream live WorkflowRun updates
// @Description Upgrades to a WebSocket; each frame is a WorkflowRun snapshot
// taken right after the run is persisted. Requires ?token=<access token>.
// @Tags runs
// @Param token query string true "Access token"
// @Router /ws/runs [get]
func (h *WSHandler) Runs(c *gin.Context) {
	if _, err := h.auth.ParseAccessToken(c.Query("token")); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wsLogger.Printf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe has no matching Unsubscribe; the channel is retained by
	// the engine for the process lifetime once this connection closes.
	updates := h.engine.Subscribe()
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case run, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(run); err != nil {
				return
			}
		}
	}
}
