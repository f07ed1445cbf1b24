package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/openai/openai-go"

	"basegraph.app/scribe/common/ratelimit"
)

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderHash   = "hash"

	// OpenAI accepts up to 2048 inputs per request; smaller batches keep
	// individual requests well under the token ceiling.
	embedBatchSize = 96
)

// Embedder maps texts to fixed-length vectors. The same Embedder must be used
// for ingestion and for queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

type EmbeddingConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Limiter    *ratelimit.Limiter
}

func NewEmbedder(cfg EmbeddingConfig) (Embedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}

	switch cfg.Provider {
	case EmbeddingProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required")
		}
		model := cfg.Model
		if model == "" {
			model = string(openai.EmbeddingModelTextEmbedding3Small)
		}
		return &openaiEmbedder{
			client:     newOpenAIClient(cfg.APIKey, cfg.BaseURL),
			model:      model,
			dimensions: cfg.Dimensions,
			limiter:    cfg.Limiter,
		}, nil
	case EmbeddingProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

type openaiEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	limiter    *ratelimit.Limiter
}

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
		}

		began := time.Now()
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model:      openai.EmbeddingModel(e.model),
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Dimensions: openai.Int(int64(e.dimensions)),
		})
		if err != nil {
			if StatusCode(err) == 429 {
				e.limiter.Backoff(5 * time.Second)
			}
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}

		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), end-start)
		}

		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(batch) {
				return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
			}
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			batch[d.Index] = vec
		}
		out = append(out, batch...)

		slog.DebugContext(ctx, "embeddings created",
			"model", e.model,
			"count", end-start,
			"duration_ms", time.Since(began).Milliseconds(),
			"prompt_tokens", resp.Usage.PromptTokens)
	}

	return out, nil
}

func (e *openaiEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *openaiEmbedder) Model() string {
	return e.model
}

// HashEmbedder is a deterministic bag-of-words embedder based on feature
// hashing of unigrams and bigrams. It needs no network access, which makes it
// the embedder for offline development and tests.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	add := func(feature string) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	for i, tok := range tokens {
		add(tok)
		if i > 0 {
			add(tokens[i-1] + " " + tok)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Model() string {
	return "feature-hash"
}
