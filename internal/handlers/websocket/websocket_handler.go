// internal/handlers/websocket/websocket_handler.go
package websocket

import (
	"net/http"
	"strings"

	"prospect-service/internal/pkg/response"
	"prospect-service/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced at the gateway.
		return true
	},
}

type WebSocketHandler struct {
	hub *realtime.Hub
}

func NewWebSocketHandler(hub *realtime.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection authenticates and upgrades a websocket client.
// Browsers cannot set headers on the upgrade request, so the token
// also travels as a query parameter.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := extractWSToken(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
		return
	}

	auth, err := h.hub.AuthenticateClient(c.Request.Context(), token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade writes its own failure response.
		return
	}

	client := realtime.NewClient(h.hub, conn, auth)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetStats reports connection counts for operators
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", map[string]interface{}{
		"total_clients": h.hub.TotalClients(),
	})
}

func extractWSToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}

	return ""
}
