package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
)

const (
	DefaultTopK            = 5
	DefaultMaxContextChars = 8000
	defaultGenerationWait  = 90 * time.Second

	assistantPersona = "You are a helpful AI assistant. You help users with their projects and questions."
	storyFormat      = "Story Title: [A clear, concise title for the story]\n" +
		"Description: As a [user type], I want [goal], so that [benefit]"
)

var storyKeywords = []string{"user story", "user stories", "story", "stories"}

type RetrievalConfig struct {
	TopK              int
	MaxContextChars   int
	GenerationTimeout time.Duration
}

type AnswerRequest struct {
	ProjectKey string
	Message    string
	// Provider picks the language model; empty uses the configured default.
	Provider string
	// Instructions replace the default answering instructions of the prompt.
	Instructions string
}

// Answer carries the generated text and the documents it was grounded on.
type Answer struct {
	Text     string
	Provider string
	Sources  []model.ScoredDocument
}

type RetrievalService interface {
	// Answer retrieves the project's most relevant documents and asks the
	// generator to answer the message with them as context. The generated
	// text is returned as is.
	Answer(ctx context.Context, req AnswerRequest) (*Answer, error)
}

type retrievalService struct {
	index      DocumentIndex
	generators *llm.Generators
	cfg        RetrievalConfig
}

func NewRetrievalService(index DocumentIndex, generators *llm.Generators, cfg RetrievalConfig) RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationWait
	}
	return &retrievalService{
		index:      index,
		generators: generators,
		cfg:        cfg,
	}
}

func (s *retrievalService) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	projectKey := req.ProjectKey
	if strings.TrimSpace(projectKey) == "" {
		return nil, domain.Validation("select a project first")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.Validation("message is required")
	}
	generator, err := s.generator(req.Provider)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Query(ctx, projectKey, req.Message, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	user := BuildPrompt(req.Message, hits, s.cfg.MaxContextChars)
	if req.Instructions != "" {
		user = buildInstructedPrompt(req.Instructions, req.Message, hits, s.cfg.MaxContextChars)
	}
	prompt := llm.Prompt{
		System: assistantPersona,
		User:   user,
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	gen, err := generator.Generate(genCtx, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed",
			"project_key", projectKey,
			"model", generator.Model(),
			"error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.Transient("generate", "the language model took too long to respond, try again", err)
		}
		return nil, domain.Transient("generate", "the language model is unavailable, try again", err)
	}
	if strings.TrimSpace(gen.Text) == "" {
		return nil, domain.Transient("generate", "the language model returned an empty response, try again", nil)
	}

	slog.InfoContext(ctx, "answer generated",
		"project_key", projectKey,
		"model", generator.Model(),
		"context_documents", len(hits),
		"prompt_tokens", gen.PromptTokens,
		"completion_tokens", gen.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())

	return &Answer{Text: gen.Text, Provider: s.generators.Resolve(req.Provider), Sources: hits}, nil
}

func (s *retrievalService) generator(provider string) (llm.Generator, error) {
	gen, err := s.generators.Get(provider)
	switch {
	case err == nil:
		return gen, nil
	case errors.Is(err, llm.ErrUnknownProvider):
		return nil, domain.Validation(fmt.Sprintf("unknown provider %q, use %s or %s", provider, llm.ProviderOpenAI, llm.ProviderAnthropic))
	case provider != "":
		return nil, domain.NotConfigured(provider)
	default:
		return nil, domain.NotConfigured("llm")
	}
}

// AsksForStories reports whether message requests user stories.
func AsksForStories(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range storyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BuildPrompt renders message with the hits as grounding context. Hits must
// be ordered by descending similarity; once the context reaches maxChars the
// remaining, least similar ones are dropped.
func BuildPrompt(message string, hits []model.ScoredDocument, maxChars int) string {
	grounding := buildContext(hits, maxChars)
	stories := AsksForStories(message)

	var b strings.Builder
	switch {
	case stories && grounding != "":
		b.WriteString("Based on the provided context, generate appropriate user stories in the following format:\n\n")
		b.WriteString(storyFormat)
		b.WriteString("\n\nContext:\n")
		b.WriteString(grounding)
	case stories:
		b.WriteString("The user is asking about user stories. Generate appropriate user stories in the following format:\n\n")
		b.WriteString(storyFormat)
	case grounding != "":
		b.WriteString("Please answer based on the provided context when relevant. If the context doesn't fully answer the question, ")
		b.WriteString("you can combine it with your general knowledge to provide a complete response.\n\nContext:\n")
		b.WriteString(grounding)
	default:
		b.WriteString("You can assist with project management, documentation, and general inquiries.")
	}
	b.WriteString("\n\nUser: ")
	b.WriteString(message)
	return b.String()
}

func buildInstructedPrompt(instructions, message string, hits []model.ScoredDocument, maxChars int) string {
	var b strings.Builder
	b.WriteString(instructions)
	if grounding := buildContext(hits, maxChars); grounding != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(grounding)
	}
	b.WriteString("\n\nUser: ")
	b.WriteString(message)
	return b.String()
}

func buildContext(hits []model.ScoredDocument, maxChars int) string {
	var (
		b     strings.Builder
		used  int
		added int
	)
	for i, hit := range hits {
		snippet := fmt.Sprintf("Document %d:\nTitle: %s\nSource: %s %s\nContent: %s",
			i+1, hit.Title(), hit.SourceType, hit.SourceID, hit.Text)
		if added > 0 {
			snippet = "\n\n" + snippet
		}

		remaining := maxChars - used
		if remaining <= 0 {
			break
		}
		n := utf8.RuneCountInString(snippet)
		if n > remaining {
			snippet = string([]rune(snippet)[:remaining])
			n = remaining
		}
		b.WriteString(snippet)
		used += n
		added++
	}
	return b.String()
}
