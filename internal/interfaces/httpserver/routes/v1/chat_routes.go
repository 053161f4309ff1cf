package v1

import (
	"github.com/gin-gonic/gin"

	"values-server/services/articulator-api/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(router gin.IRoutes, handler *handlers.ChatHandler) {
	router.GET("/chats/:chat_id", handler.Get)
	router.POST("/chats/:chat_id/completions", handler.CreateCompletion)
}
