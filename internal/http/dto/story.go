package dto

import (
	"time"

	"basegraph.app/scribe/internal/model"
)

type ChatRequest struct {
	Message    string `json:"message" binding:"required"`
	ProjectKey string `json:"project_key"`
	Provider   string `json:"provider" binding:"omitempty,oneof=openai anthropic"`
}

type StoryResponse struct {
	ID          int64             `json:"id,string"`
	ProjectKey  string            `json:"project_key"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      model.StoryStatus `json:"status"`
	Source      model.StorySource `json:"source"`
	ExternalKey *string           `json:"external_key,omitempty"`
	EpicID      *int64            `json:"epic_id,string,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func ToStoryResponse(s *model.Story) StoryResponse {
	return StoryResponse{
		ID:          s.ID,
		ProjectKey:  s.ProjectKey,
		Title:       s.Title,
		Description: s.Description,
		Status:      s.Status,
		Source:      s.Source,
		ExternalKey: s.ExternalKey,
		EpicID:      s.EpicID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func ToStoryResponses(stories []model.Story) []StoryResponse {
	out := make([]StoryResponse, 0, len(stories))
	for i := range stories {
		out = append(out, ToStoryResponse(&stories[i]))
	}
	return out
}

type StoryFailureResponse struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type ChatSource struct {
	Title      string           `json:"title"`
	SourceType model.SourceType `json:"source_type"`
	SourceID   string           `json:"source_id"`
	Similarity float64          `json:"similarity"`
}

type ChatResponse struct {
	Response string                 `json:"response"`
	Provider string                 `json:"provider"`
	Stories  []StoryResponse        `json:"stories"`
	Failed   []StoryFailureResponse `json:"failed"`
	Sources  []ChatSource           `json:"sources,omitempty"`
}

type CreateStoryRequest struct {
	ProjectKey  string `json:"project_key" binding:"required,max=255"`
	Title       string `json:"title" binding:"required,max=500"`
	Description string `json:"description"`
}

type UpdateStoryRequest struct {
	Updates model.StoryPatch `json:"updates"`
}

type StoriesResponse struct {
	Stories []StoryResponse `json:"stories"`
}

type PublishResponse struct {
	Message string        `json:"message"`
	Story   StoryResponse `json:"story"`
}

type GenerateFromBRDRequest struct {
	ProjectKey      string `json:"project_key" binding:"required,max=255"`
	SpecificSection string `json:"specific_section" binding:"max=255"`
}

type GenerateFromBRDResponse struct {
	Message  string                 `json:"message"`
	Sections []string               `json:"sections"`
	Stories  []StoryResponse        `json:"stories"`
	Failed   []StoryFailureResponse `json:"failed"`
}

type GenerateEpicsRequest struct {
	ProjectKey string `json:"project_key" binding:"required,max=255"`
	Prompt     string `json:"prompt" binding:"required"`
	NumEpics   int    `json:"num_epics" binding:"omitempty,min=1,max=5"`
	Provider   string `json:"provider" binding:"omitempty,oneof=openai anthropic"`
}

type EpicResponse struct {
	Epic    StoryResponse   `json:"epic"`
	Stories []StoryResponse `json:"stories"`
}

type GenerateEpicsResponse struct {
	Message  string                 `json:"message"`
	Provider string                 `json:"provider"`
	Epics    []EpicResponse         `json:"epics"`
	Failed   []StoryFailureResponse `json:"failed"`
}
