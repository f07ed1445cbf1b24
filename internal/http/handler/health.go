package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/service"
)

type HealthHandler struct {
	healthService service.HealthService
}

func NewHealthHandler(healthService service.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// Health always answers 200; degradation is reported in the body.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthService.Check(c.Request.Context()))
}
