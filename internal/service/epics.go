package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/extract"
	"basegraph.app/scribe/internal/model"
)

const (
	DefaultEpicCount = 1
	MaxEpicCount     = 5
)

type EpicRequest struct {
	ProjectKey string
	Prompt     string
	NumEpics   int
	Provider   string
}

// EpicDraft is a saved epic and the stories saved under it.
type EpicDraft struct {
	Epic    model.Story   `json:"epic"`
	Stories []model.Story `json:"stories"`
}

type EpicResult struct {
	Response string         `json:"response"`
	Provider string         `json:"provider"`
	Epics    []EpicDraft    `json:"epics"`
	Failed   []StoryFailure `json:"failed"`
}

type EpicService interface {
	// Generate asks the language model for epics with their user stories,
	// grounded on the project's context, and saves all of them as drafts.
	// Nothing is published.
	Generate(ctx context.Context, req EpicRequest) (*EpicResult, error)
}

type epicService struct {
	retrieval RetrievalService
	extractor *extract.Extractor
	stories   StoryService
}

func NewEpicService(retrieval RetrievalService, extractor *extract.Extractor, stories StoryService) EpicService {
	return &epicService{
		retrieval: retrieval,
		extractor: extractor,
		stories:   stories,
	}
}

func (s *epicService) Generate(ctx context.Context, req EpicRequest) (*EpicResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.Validation("prompt is required")
	}
	if req.NumEpics == 0 {
		req.NumEpics = DefaultEpicCount
	}
	if req.NumEpics < 1 || req.NumEpics > MaxEpicCount {
		return nil, domain.Validation(fmt.Sprintf("num_epics must be between 1 and %d", MaxEpicCount))
	}

	answer, err := s.retrieval.Answer(ctx, AnswerRequest{
		ProjectKey:   req.ProjectKey,
		Message:      req.Prompt,
		Provider:     req.Provider,
		Instructions: epicInstructions(req.NumEpics),
	})
	if err != nil {
		return nil, err
	}

	result := &EpicResult{
		Response: answer.Text,
		Provider: answer.Provider,
		Epics:    []EpicDraft{},
		Failed:   []StoryFailure{},
	}

	for _, candidate := range s.extractor.ExtractEpics(answer.Text) {
		epic, err := s.stories.Create(ctx, req.ProjectKey, model.StoryCandidate{
			ID:          candidate.ID,
			Title:       candidate.Title,
			Description: candidate.Description,
		}, model.StorySourceEpic)
		if err != nil {
			reason := failureReason(err)
			slog.WarnContext(ctx, "failed to save generated epic",
				"project_key", req.ProjectKey,
				"title", candidate.Title,
				"error", err)
			result.Failed = append(result.Failed, StoryFailure{Title: candidate.Title, Reason: reason})
			// Stories cannot point at an epic that was not saved.
			for _, story := range candidate.Stories {
				result.Failed = append(result.Failed, StoryFailure{Title: story.Title, Reason: "epic could not be saved"})
			}
			continue
		}

		draft := EpicDraft{Epic: *epic, Stories: []model.Story{}}
		for _, storyCandidate := range candidate.Stories {
			story, err := s.stories.Create(ctx, req.ProjectKey, storyCandidate, model.StorySourceEpic)
			if err != nil {
				result.Failed = append(result.Failed, StoryFailure{Title: storyCandidate.Title, Reason: failureReason(err)})
				continue
			}
			draft.Stories = append(draft.Stories, *story)
		}
		result.Epics = append(result.Epics, draft)
	}

	slog.InfoContext(ctx, "epics generated",
		"project_key", req.ProjectKey,
		"epics", len(result.Epics),
		"failed", len(result.Failed))

	return result, nil
}

func epicInstructions(n int) string {
	return fmt.Sprintf(`Based on the provided context, generate %d epic(s) with associated user stories.
For each epic, provide a clear, concise title, a description of the epic's goals and scope, and 3-5 user stories that belong to it.

Format each epic exactly as follows:
%s
Title: [Epic Title]
Description: [Epic Description]
User Stories:
1. As a [user type], I want [goal], so that [benefit]
Description: [Detailed description of the user story]
2. As a [user type], I want [goal], so that [benefit]
Description: [Detailed description of the user story]
%s`, n, extract.EpicStart, extract.EpicEnd)
}

func failureReason(err error) string {
	if reason := domain.MessageOf(err); reason != "" {
		return reason
	}
	return err.Error()
}
