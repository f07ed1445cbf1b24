package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/extract"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/store"
)

const (
	brdDraftSystemPrompt = "You are a product analyst. You turn business requirement documents into " +
		"user stories. Each story has a short title and a description in the form " +
		"\"As a [user type], I want [goal], so that [benefit]\". Cover every requirement in the " +
		"provided sections and do not invent requirements that are not there."
	maxBRDDraftContextChars = 24000
)

type brdStoryDraft struct {
	Title       string `json:"title" jsonschema:"required,description=Clear concise story title"`
	Description string `json:"description" jsonschema:"required,description=As a [user type] I want [goal] so that [benefit]"`
}

type brdStoryDrafts struct {
	Stories []brdStoryDraft `json:"stories" jsonschema:"required,description=User stories covering the requirements"`
}

type BRDDraftRequest struct {
	ProjectKey      string
	SpecificSection string
}

type BRDDraftResult struct {
	Sections []string       `json:"sections"`
	Stories  []model.Story  `json:"stories"`
	Failed   []StoryFailure `json:"failed"`
}

type BRDDraftService interface {
	// Generate drafts stories from the BRD sections already ingested for the
	// project. Stories are saved as drafts and never published here.
	Generate(ctx context.Context, req BRDDraftRequest) (*BRDDraftResult, error)
}

type brdDraftService struct {
	documents store.DocumentStore
	drafter   llm.Client
	stories   StoryService
	newID     func() int64
	timeout   time.Duration
}

func NewBRDDraftService(documents store.DocumentStore, drafter llm.Client, stories StoryService, newID func() int64, timeout time.Duration) BRDDraftService {
	if timeout <= 0 {
		timeout = defaultGenerationWait
	}
	return &brdDraftService{
		documents: documents,
		drafter:   drafter,
		stories:   stories,
		newID:     newID,
		timeout:   timeout,
	}
}

func (s *brdDraftService) Generate(ctx context.Context, req BRDDraftRequest) (*BRDDraftResult, error) {
	if req.ProjectKey == "" {
		return nil, domain.Validation("project_key is required")
	}
	if s.drafter == nil {
		return nil, domain.NotConfigured("llm")
	}

	docs, err := s.documents.List(ctx, req.ProjectKey, model.SourceTypeBRDSection)
	if err != nil {
		return nil, fmt.Errorf("listing BRD sections: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.NotFound(fmt.Sprintf("no BRD found for project %s", req.ProjectKey))
	}

	if req.SpecificSection != "" {
		want := strings.ToLower(req.SpecificSection)
		filtered := docs[:0]
		for _, doc := range docs {
			if strings.Contains(strings.ToLower(doc.Metadata["section"]), want) {
				filtered = append(filtered, doc)
			}
		}
		if len(filtered) == 0 {
			return nil, domain.NotFound(fmt.Sprintf("section %q not found in BRD", req.SpecificSection))
		}
		docs = filtered
	}

	prompt, sections := brdDraftPrompt(docs)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var drafts brdStoryDrafts
	resp, err := s.drafter.Chat(callCtx, llm.Request{
		SystemPrompt: brdDraftSystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "brd_story_drafts",
		Schema:       llm.GenerateSchema[brdStoryDrafts](),
		Temperature:  llm.Temp(0.2),
	}, &drafts)
	if err != nil {
		slog.ErrorContext(ctx, "BRD story drafting failed", "project_key", req.ProjectKey, "error", err)
		return nil, domain.Transient("draft_stories", "the language model could not draft stories, try again", err)
	}

	result := &BRDDraftResult{
		Sections: sections,
		Stories:  []model.Story{},
		Failed:   []StoryFailure{},
	}
	for _, draft := range drafts.Stories {
		candidate := model.StoryCandidate{
			ID:          s.newID(),
			Title:       strings.TrimSpace(draft.Title),
			Description: strings.TrimSpace(draft.Description),
		}
		if candidate.Title == "" {
			candidate.Title = extract.UntitledStory
		}
		if candidate.Description == "" {
			candidate.Description = extract.NoDescription
		}

		story, err := s.stories.Create(ctx, req.ProjectKey, candidate, model.StorySourceBRD)
		if err != nil {
			reason := failureReason(err)
			result.Failed = append(result.Failed, StoryFailure{Title: candidate.Title, Reason: reason})
			continue
		}
		result.Stories = append(result.Stories, *story)
	}

	slog.InfoContext(ctx, "BRD stories drafted",
		"project_key", req.ProjectKey,
		"sections", len(sections),
		"stories", len(result.Stories),
		"failed", len(result.Failed),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return result, nil
}

// brdDraftPrompt joins the chunks in document order and returns the distinct
// section titles it covers.
func brdDraftPrompt(docs []model.Document) (string, []string) {
	var (
		b        strings.Builder
		sections []string
		seen     = make(map[string]bool)
	)
	b.WriteString("Based on this BRD, generate appropriate user stories:\n")
	for _, doc := range docs {
		if b.Len()+len(doc.Text) > maxBRDDraftContextChars && len(sections) > 0 {
			break
		}
		section := doc.Metadata["section"]
		if !seen[section] {
			seen[section] = true
			sections = append(sections, section)
		}
		b.WriteString("\n\nSection: ")
		b.WriteString(doc.Metadata["title"])
		b.WriteString("\n")
		b.WriteString(doc.Text)
	}
	return b.String(), sections
}
