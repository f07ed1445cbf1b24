package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

type WikiHandler struct {
	wikiService service.WikiPageService
}

func NewWikiHandler(wikiService service.WikiPageService) *WikiHandler {
	return &WikiHandler{wikiService: wikiService}
}

func (h *WikiHandler) CreatePage(c *gin.Context) {
	var req dto.CreateConfluencePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.wikiService.Create(c.Request.Context(), model.NewWikiPage{
		SpaceKey: req.SpaceKey,
		Title:    req.Title,
		Body:     req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ConfluencePageResponse{
		Message:  "Page created successfully",
		PageID:   page.ID,
		Title:    page.Title,
		SpaceKey: page.SpaceKey,
		URL:      page.URL,
	})
}
