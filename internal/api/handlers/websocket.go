package handlers

import (
	"log"
	"net/http"
	"strings"

	"shuttle-backend/internal/websocket"

	"github.com/gin-gonic/gin"
)

// WebSocketHandler handles WebSocket connections for real-time updates
type WebSocketHandler struct {
	manager *websocket.Manager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(manager *websocket.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
	}
}

// HandleWebSocket upgrades the connection and serves it until the client
// leaves. Authentication is optional: a token in the query or Authorization
// header, or an auth message after connecting, lifts the connection out of
// the anonymous rider role.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	conn, err := h.manager.GetUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Printf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	h.manager.Serve(conn, token)
}

// GetConnectedClients returns the number of connected WebSocket clients
func (h *WebSocketHandler) GetConnectedClients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connectedClients": h.manager.GetConnectedClients(),
		"stats":            h.manager.GetClientStats(),
	})
}

// DisconnectClient allows manual disconnection of a client (for admin purposes)
func (h *WebSocketHandler) DisconnectClient(c *gin.Context) {
	h.manager.UnregisterClient(c.Param("clientId"))
	c.JSON(http.StatusOK, gin.H{"message": "Client disconnected successfully"})
}
