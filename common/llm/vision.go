package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"basegraph.app/scribe/common/ratelimit"
)

const describeImagePrompt = "Describe this image in detail, focusing on any text, diagrams, " +
	"or technical content visible. If it's a diagram, explain its components and their relationships. " +
	"If it contains text, include the important text in your description."

// Captioner describes an image in natural language.
type Captioner interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}

type CaptionerConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Limiter   *ratelimit.Limiter
}

type openaiCaptioner struct {
	client    openai.Client
	model     string
	maxTokens int
	limiter   *ratelimit.Limiter
}

func NewCaptioner(cfg CaptionerConfig) (Captioner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	return &openaiCaptioner{
		client:    newOpenAIClient(cfg.APIKey, cfg.BaseURL),
		model:     model,
		maxTokens: maxTokens,
		limiter:   cfg.Limiter,
	}, nil
}

func (c *openaiCaptioner) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for vision rate limit: %w", err)
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(describeImagePrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		if StatusCode(err) == 429 {
			c.limiter.Backoff(5 * time.Second)
		}
		return "", fmt.Errorf("openai describe image: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	slog.DebugContext(ctx, "image described",
		"model", c.model,
		"bytes", len(image),
		"duration_ms", time.Since(start).Milliseconds(),
		"completion_tokens", resp.Usage.CompletionTokens)

	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	if description == "" {
		return "", fmt.Errorf("empty image description")
	}
	return description, nil
}
