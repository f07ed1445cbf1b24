package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/handler"
)

func SyncRouter(router *gin.RouterGroup, handler *handler.SyncHandler) {
	router.POST("/sync_jira", handler.SyncJira)
	router.POST("/sync_confluence", handler.SyncConfluence)
	router.POST("/upload_image", handler.UploadImage)
	router.POST("/upload_brd", handler.UploadBRD)
}
