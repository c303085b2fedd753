package controller

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/ikkim/storefront-cart/internal/middleware"
	ws "github.com/ikkim/storefront-cart/internal/websocket"
)

type WebSocketController struct {
	hub      *ws.Hub
	upgrader gorilla.Upgrader
}

func NewWebSocketController(hub *ws.Hub, allowedOrigins []string) *WebSocketController {
	return &WebSocketController{
		hub:      hub,
		upgrader: ws.NewUpgrader(allowedOrigins),
	}
}

// HandleWebSocket streams cart state and toasts to the browser
// GET /api/v1/ws
func (ctrl *WebSocketController) HandleWebSocket(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err, nil)
		return
	}

	client := ws.NewClient(ctrl.hub, conn, s.ClientID)

	// Current state first, so the browser never renders a blank cart.
	if data, err := json.Marshal(ws.Message{Type: ws.TypeCartState, Payload: s.Store.State()}); err == nil {
		client.Send <- data
	}

	ctrl.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", nil)
}
