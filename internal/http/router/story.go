package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
)

func StoryRouter(router *gin.RouterGroup, handler *handler.StoryHandler) {
	router.POST("", handler.Create)
	router.GET("/:project_key", handler.List)
	router.PUT("/:project_key/:id", handler.Update)
	router.POST("/:project_key/:id/publish", handler.Publish)
}
