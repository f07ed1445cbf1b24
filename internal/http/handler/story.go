package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

type StoryHandler struct {
	storyService service.StoryService
	brdService   service.BRDDraftService
}

func NewStoryHandler(storyService service.StoryService, brdService service.BRDDraftService) *StoryHandler {
	return &StoryHandler{storyService: storyService, brdService: brdService}
}

func (h *StoryHandler) List(c *gin.Context) {
	stories, err := h.storyService.List(c.Request.Context(), c.Param("project_key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StoriesResponse{Stories: dto.ToStoryResponses(stories)})
}

func (h *StoryHandler) Create(c *gin.Context) {
	var req dto.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	story, err := h.storyService.Create(c.Request.Context(), req.ProjectKey, model.StoryCandidate{
		Title:       req.Title,
		Description: req.Description,
	}, model.StorySourceManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToStoryResponse(story))
}

func (h *StoryHandler) Update(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	var req dto.UpdateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	story, err := h.storyService.Update(c.Request.Context(), c.Param("project_key"), storyID, req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToStoryResponse(story))
}

func (h *StoryHandler) Publish(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	story, err := h.storyService.Publish(c.Request.Context(), c.Param("project_key"), storyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PublishResponse{
		Message: fmt.Sprintf("Story published as %s", *story.ExternalKey),
		Story:   dto.ToStoryResponse(story),
	})
}

func (h *StoryHandler) GenerateFromBRD(c *gin.Context) {
	var req dto.GenerateFromBRDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.brdService.Generate(c.Request.Context(), service.BRDDraftRequest{
		ProjectKey:      req.ProjectKey,
		SpecificSection: req.SpecificSection,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.GenerateFromBRDResponse{
		Message:  fmt.Sprintf("Generated %d draft stories from %d BRD sections", len(result.Stories), len(result.Sections)),
		Sections: result.Sections,
		Stories:  dto.ToStoryResponses(result.Stories),
		Failed:   toFailureResponses(result.Failed),
	})
}

func parseStoryID(c *gin.Context) (int64, bool) {
	storyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, domain.Validation("invalid story id"))
		return 0, false
	}
	return storyID, true
}

func toFailureResponses(failed []service.StoryFailure) []dto.StoryFailureResponse {
	out := make([]dto.StoryFailureResponse, 0, len(failed))
	for _, f := range failed {
		out = append(out, dto.StoryFailureResponse{Title: f.Title, Reason: f.Reason})
	}
	return out
}
