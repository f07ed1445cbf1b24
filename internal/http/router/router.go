package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/internal/http/handler"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/store"
)

type RouterConfig struct {
	Blobs   store.BlobStore
	Metrics *metrics.Metrics
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	healthHandler := handler.NewHealthHandler(services.Health())
	router.GET("/health", healthHandler.Health)

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	trackerHandler := handler.NewTrackerHandler(services.Tracker())
	TrackerRouter(router.Group("/jira"), trackerHandler)

	syncHandler := handler.NewSyncHandler(services.Sync())
	SyncRouter(router.Group(""), syncHandler)

	chatHandler := handler.NewChatHandler(services.Chat())
	router.POST("/chat", chatHandler.Chat)

	storyHandler := handler.NewStoryHandler(services.Stories(), services.BRDDrafts())
	StoryRouter(router.Group("/stories"), storyHandler)
	router.POST("/generate_from_brd", storyHandler.GenerateFromBRD)

	epicHandler := handler.NewEpicHandler(services.Epics())
	router.POST("/generate_epics", epicHandler.Generate)

	wikiHandler := handler.NewWikiHandler(services.WikiPages())
	router.POST("/create_confluence_page", wikiHandler.CreatePage)

	if cfg.Blobs != nil {
		imageHandler := handler.NewImageHandler(cfg.Blobs)
		router.GET("/images/:project_key/:name", imageHandler.Serve)
	}
}
