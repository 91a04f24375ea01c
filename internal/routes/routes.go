package routes

import (
	"huddle_backend/internal/handlers"
	"huddle_backend/internal/logger"
	"huddle_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the REST API, the websocket endpoint and the health check.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	verifier middleware.TokenVerifier,
) {
	ginRouter.GET("/health", appHandlers.HealthHandler.Check)

	api := ginRouter.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(verifier))
	{
		appHandlers.ChatHandler.RegisterRoutes(api)
		if appHandlers.MediaHandler != nil {
			appHandlers.MediaHandler.RegisterRoutes(api)
		}
	}

	wsGroup := ginRouter.Group("/ws")
	wsGroup.Use(middleware.AuthMiddleware(verifier))
	{
		wsGroup.GET("", appHandlers.WSHandler.ServeWS)
	}
	logger.Info("WebSocket route /ws registered")
}
