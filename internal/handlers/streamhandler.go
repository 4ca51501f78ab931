package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/skillbridge/pulse/internal/devserver"
	"github.com/skillbridge/pulse/internal/dtos"
)

// StreamHandler exposes the dev server's hub over gin routes.
type StreamHandler struct {
	Hub      *devserver.Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler creates the handler with dependencies
func NewStreamHandler(hub *devserver.Hub) *StreamHandler {
	return &StreamHandler{
		Hub: hub,
		// Dev tool: any origin may connect.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Serve is the GET /ws endpoint: upgrade and hand the socket to the hub.
func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	h.Hub.HandleConn(conn, c.Query("userId"))
}

// Push is the POST /notify endpoint: broadcast an arbitrary frame.
func (h *StreamHandler) Push(c *gin.Context) {
	var req dtos.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	h.Hub.Push(req.Type, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"delivered_to": h.Hub.ClientCount()})
}

// RouteStub answers any prefetch warm-up GET with a trivial payload.
func RouteStub(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"route": c.FullPath(), "warmed": true})
}
