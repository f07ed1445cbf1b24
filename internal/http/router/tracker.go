package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
)

func TrackerRouter(router *gin.RouterGroup, handler *handler.TrackerHandler) {
	router.GET("/projects", handler.ListProjects)
	router.GET("/test-connection", handler.TestConnection)
}
