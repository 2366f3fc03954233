package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/internal/services"
	"parley/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades authenticated requests to WebSocket and hands
// the connection to the hub. Auth happens in middleware before this runs.
type WebSocketHandler struct {
	hub *Hub
	log *logger.Logger
}

func NewWebSocketHandler(hub *Hub, log *logger.Logger) *WebSocketHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &WebSocketHandler{hub: hub, log: log}
}

func (h *WebSocketHandler) Handle(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade failed user=%s: %v", userID, err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.hub, conn, userID, clientID, h.log)

	h.hub.Register(client)
}
