package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/service"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), service.ChatRequest{
		ProjectKey: req.ProjectKey,
		Message:    req.Message,
		Provider:   req.Provider,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.ChatResponse{
		Response: result.Response,
		Provider: result.Provider,
		Stories:  dto.ToStoryResponses(result.Stories),
		Failed:   toFailureResponses(result.Failed),
	}
	for _, src := range result.Sources {
		resp.Sources = append(resp.Sources, dto.ChatSource(src))
	}
	c.JSON(http.StatusOK, resp)
}
