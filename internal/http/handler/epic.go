package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/service"
)

type EpicHandler struct {
	epicService service.EpicService
}

func NewEpicHandler(epicService service.EpicService) *EpicHandler {
	return &EpicHandler{epicService: epicService}
}

// Generate drafts epics with their stories. Publishing stays a separate step per story.
func (h *EpicHandler) Generate(c *gin.Context) {
	var req dto.GenerateEpicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.epicService.Generate(c.Request.Context(), service.EpicRequest{
		ProjectKey: req.ProjectKey,
		Prompt:     req.Prompt,
		NumEpics:   req.NumEpics,
		Provider:   req.Provider,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.GenerateEpicsResponse{
		Provider: result.Provider,
		Epics:    make([]dto.EpicResponse, 0, len(result.Epics)),
		Failed:   toFailureResponses(result.Failed),
	}
	stories := 0
	for i := range result.Epics {
		draft := &result.Epics[i]
		resp.Epics = append(resp.Epics, dto.EpicResponse{
			Epic:    dto.ToStoryResponse(&draft.Epic),
			Stories: dto.ToStoryResponses(draft.Stories),
		})
		stories += len(draft.Stories)
	}
	resp.Message = fmt.Sprintf("Generated %d draft epics with %d stories", len(resp.Epics), stories)

	c.JSON(http.StatusOK, resp)
}
