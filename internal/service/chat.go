package service

import (
	"context"
	"log/slog"

	"basegraph.app/scribe/internal/extract"
	"basegraph.app/scribe/internal/model"
)

// StoryFailure is an extracted story that could not be saved.
type StoryFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type ChatRequest struct {
	ProjectKey string
	Message    string
	// Provider picks the language model; empty uses the configured default.
	Provider string
}

type ChatResult struct {
	Response string          `json:"response"`
	Provider string          `json:"provider"`
	Stories  []model.Story   `json:"stories"`
	Failed   []StoryFailure  `json:"failed"`
	Sources  []SourceSummary `json:"sources,omitempty"`
}

// SourceSummary names a document the answer was grounded on.
type SourceSummary struct {
	Title      string           `json:"title"`
	SourceType model.SourceType `json:"source_type"`
	SourceID   string           `json:"source_id"`
	Similarity float64          `json:"similarity"`
}

type ChatService interface {
	// Chat answers the message from the project's context and saves every
	// story found in the answer as a draft.
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

type chatService struct {
	retrieval RetrievalService
	extractor *extract.Extractor
	stories   StoryService
}

func NewChatService(retrieval RetrievalService, extractor *extract.Extractor, stories StoryService) ChatService {
	return &chatService{
		retrieval: retrieval,
		extractor: extractor,
		stories:   stories,
	}
}

func (s *chatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	answer, err := s.retrieval.Answer(ctx, AnswerRequest{
		ProjectKey: req.ProjectKey,
		Message:    req.Message,
		Provider:   req.Provider,
	})
	if err != nil {
		return nil, err
	}

	projectKey := req.ProjectKey
	result := &ChatResult{
		Response: answer.Text,
		Provider: answer.Provider,
		Stories:  []model.Story{},
		Failed:   []StoryFailure{},
	}
	for _, hit := range answer.Sources {
		result.Sources = append(result.Sources, SourceSummary{
			Title:      hit.Title(),
			SourceType: hit.SourceType,
			SourceID:   hit.SourceID,
			Similarity: hit.Similarity,
		})
	}

	// Each candidate is saved on its own; one failure does not drop the rest.
	for _, candidate := range s.extractor.Extract(answer.Text) {
		story, err := s.stories.Create(ctx, projectKey, candidate, model.StorySourceChat)
		if err != nil {
			reason := failureReason(err)
			slog.WarnContext(ctx, "failed to save extracted story",
				"project_key", projectKey,
				"title", candidate.Title,
				"error", err)
			result.Failed = append(result.Failed, StoryFailure{Title: candidate.Title, Reason: reason})
			continue
		}
		result.Stories = append(result.Stories, *story)
	}

	return result, nil
}
