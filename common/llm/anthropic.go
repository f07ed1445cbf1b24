package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func newAnthropicGenerator(cfg Config) Generator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}

	return &anthropicGenerator{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt Prompt) (*Generation, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = 2000
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt.User)},
		}},
	}

	// Anthropic takes the system prompt separately from the messages.
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{
			Type: "text",
			Text: prompt.System,
		}}
	}

	if prompt.Temperature != nil {
		params.Temperature = anthropic.Float(*prompt.Temperature)
	}

	start := time.Now()
	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic generate: %w", err)
	}

	slog.DebugContext(ctx, "generation completed",
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Generation{
		Text:             text.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func (g *anthropicGenerator) Model() string {
	return g.model
}
