package ws

import (
	"context"
	"net/http"

	"worklink_backend/internal/logger"
	"worklink_backend/internal/middleware"
	"worklink_backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшн добавьте проверку origin
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketHandler struct {
	registry *realtime.Registry
}

func NewWebSocketHandler(registry *realtime.Registry) *WebSocketHandler {
	return &WebSocketHandler{registry: registry}
}

// ServeWS апгрейдит соединение и привязывает к нему сессию синхронизации.
// Актор берется из auth middleware, не из query.
func (h *WebSocketHandler) ServeWS(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("websocket upgrade error", "error", err)
		return
	}

	session := h.registry.Open(userID)

	client := &Client{
		Conn:     conn,
		Send:     make(chan any, 256),
		Session:  session,
		registry: h.registry,
	}
	session.SetOnChange(client.pushState)

	logger.Info("websocket client connected", "user_id", userID)

	// Контекст запроса умирает после hijack, поэтому фон -
	// жизнью цикла управляет отписка при разрыве соединения.
	go session.Run(context.Background())
	go client.readPump()
	go client.writePump()

	// Начальный снапшот сразу после подключения
	client.pushState()
}
