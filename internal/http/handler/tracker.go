package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/service"
)

type TrackerHandler struct {
	trackerService service.TrackerService
}

func NewTrackerHandler(trackerService service.TrackerService) *TrackerHandler {
	return &TrackerHandler{trackerService: trackerService}
}

func (h *TrackerHandler) ListProjects(c *gin.Context) {
	projects, err := h.trackerService.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *TrackerHandler) TestConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.trackerService.TestConnection(c.Request.Context()))
}
