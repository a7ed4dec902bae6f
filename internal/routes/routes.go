package routes

import (
	"worklink_backend/internal/handlers"
	"worklink_backend/internal/logger"
	"worklink_backend/internal/middleware"
	"worklink_backend/ws"

	"github.com/gin-gonic/gin"
)

type AppHandlers struct {
	ChatHandler         *handlers.ChatHandler
	NotificationHandler *handlers.NotificationHandler
}

// RegisterRoutes регистрирует все HTTP и WebSocket маршруты.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *AppHandlers,
	wsHandler *ws.WebSocketHandler,
) {
	api := ginRouter.Group("/api/v1")
	{
		chat := api.Group("/conversations")
		chat.Use(middleware.AuthMiddleware())
		{
			chat.GET("", appHandlers.ChatHandler.GetConversations)
			chat.POST("", appHandlers.ChatHandler.StartConversation)
			chat.GET("/unread-total", appHandlers.ChatHandler.GetUnreadTotal)
			chat.GET("/:conversationId", appHandlers.ChatHandler.GetConversation)
			chat.GET("/:conversationId/messages", appHandlers.ChatHandler.GetMessages)
			chat.POST("/:conversationId/messages", appHandlers.ChatHandler.SendMessage)
			chat.PUT("/:conversationId/read", appHandlers.ChatHandler.MarkConversationRead)
		}

		notifications := api.Group("/notifications")
		notifications.Use(middleware.AuthMiddleware())
		{
			notifications.GET("", appHandlers.NotificationHandler.GetNotifications)
			notifications.POST("", appHandlers.NotificationHandler.CreateNotification)
			notifications.PUT("/read-all", appHandlers.NotificationHandler.MarkAllAsRead)
			notifications.PUT("/:notificationId/read", appHandlers.NotificationHandler.MarkAsRead)
			notifications.GET("/unread-count", appHandlers.NotificationHandler.GetUnreadCount)
		}
	}

	wsGroup := ginRouter.Group("/ws")
	wsGroup.Use(middleware.AuthMiddleware())
	{
		wsGroup.GET("", wsHandler.ServeWS)
	}
	logger.Info("WebSocket route /ws registered")
}
