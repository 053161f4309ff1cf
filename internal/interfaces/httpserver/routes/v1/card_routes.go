package v1

import (
	"github.com/gin-gonic/gin"

	"values-server/services/articulator-api/internal/interfaces/httpserver/handlers"
)

func registerCardRoutes(router gin.IRoutes, handler *handlers.CardHandler) {
	router.GET("/cards", handler.List)
	router.GET("/cards/:card_id", handler.Get)
}
