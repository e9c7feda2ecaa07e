package controllers

import (
	"lifeline/utils"
	"lifeline/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{
		hub: hub,
	}
}

// HandleConnection upgrades the request and attaches the client to the hub.
// Auth middleware has already validated the token (passed as ?token= for
// browser clients).
func (wc *WebSocketController) HandleConnection(c *gin.Context) {
	subjectID := c.GetString("userID")
	role := c.GetString("userRole")

	if subjectID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}
	if role != websocket.RoleUser && role != websocket.RoleAmbulance {
		utils.ForbiddenResponse(c, "Unknown subscriber role")
		return
	}

	conn, err := websocket.Upgrade(c.Writer, c.Request)
	if err != nil {
		logrus.Errorf("WebSocket upgrade failed for %s: %v", subjectID, err)
		return
	}

	client := websocket.NewClient(conn, wc.hub, subjectID, role)
	wc.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns hub connection statistics
func (wc *WebSocketController) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, "WebSocket stats retrieved successfully", wc.hub.GetStats())
}
