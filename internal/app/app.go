package app

import (
	"context"
	"fmt"
	"time"

	"worklink_backend/database"
	"worklink_backend/internal/config"
	"worklink_backend/internal/handlers"
	"worklink_backend/internal/logger"
	"worklink_backend/internal/middleware"
	"worklink_backend/internal/realtime"
	"worklink_backend/internal/repositories"
	"worklink_backend/internal/routes"
	"worklink_backend/internal/services"
	"worklink_backend/internal/stream"
	"worklink_backend/internal/validator"
	"worklink_backend/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	gormDB, err := database.ConnectGorm()
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	ginRouter, listener := SetupRouter(cfg, gormDB)

	// Change stream живет, пока жив процесс
	go listener.Run(context.Background())

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

// SetupRouter собирает весь граф зависимостей и возвращает роутер
// вместе с листенером change stream (запускает его вызывающая сторона).
func SetupRouter(cfg *config.Config, gormDB *gorm.DB) (*gin.Engine, *stream.Listener) {
	// Репозитории
	conversationRepo := repositories.NewConversationRepository(gormDB)
	messageRepo := repositories.NewMessageRepository(gormDB)
	notificationRepo := repositories.NewNotificationRepository(gormDB)

	// Сервисы REST-стороны
	chatService := services.NewChatService(conversationRepo, messageRepo)
	notificationService := services.NewNotificationService(notificationRepo)

	// Change stream: listener -> dispatcher -> сессии
	dispatcher := stream.NewDispatcher(cfg.Stream.BufferSize)
	listener := stream.NewListener(
		cfg.Database.DSN,
		cfg.Stream.Channel,
		dispatcher,
		time.Duration(cfg.Stream.ReconnectSeconds)*time.Second,
	)
	registry := realtime.NewRegistry(conversationRepo, messageRepo, notificationRepo, dispatcher)

	// Хэндлеры
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)
	appHandlers := &routes.AppHandlers{
		ChatHandler:         handlers.NewChatHandler(baseHandler, chatService),
		NotificationHandler: handlers.NewNotificationHandler(baseHandler, notificationService),
	}
	wsHandler := ws.NewWebSocketHandler(registry)

	ginRouter := initializeGinRouter(gormDB)
	routes.RegisterRoutes(ginRouter, appHandlers, wsHandler)

	return ginRouter, listener
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}
