// Package bootstrap builds the service graph shared by the server and worker
// binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/keylock"
	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/common/ratelimit"
	"basegraph.app/scribe/core/config"
	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/extract"
	"basegraph.app/scribe/internal/index"
	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/service/issue_tracker"
	"basegraph.app/scribe/internal/service/wiki"
	"basegraph.app/scribe/internal/store"
)

// App holds the constructed services and the resources that must be closed
// on shutdown.
type App struct {
	Services *service.Services
	Blobs    store.BlobStore
	Metrics  *metrics.Metrics
	Redis    *redis.Client

	database *db.DB
	producer queue.Producer
}

// Build connects storage and Redis and wires every service. Optional
// integrations that are not configured are logged and left out.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Metrics: metrics.New()}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	stores, err := app.openStores(ctx, cfg, embedder.Dimensions())
	if err != nil {
		return nil, err
	}

	publishLocks := keylock.Locker(keylock.NewMap())
	syncLocks := keylock.Locker(keylock.NewMap())
	if cfg.Pipeline.Enabled() {
		if err := app.connectRedis(ctx, cfg); err != nil {
			app.Close()
			return nil, err
		}
		app.producer = queue.NewRedisProducer(app.Redis, cfg.Pipeline.RedisStream, slog.Default())
		publishLocks = keylock.Chain{publishLocks, keylock.NewRedis(app.Redis, "scribe:lock:", cfg.Pipeline.LockTTL)}
		syncLocks = keylock.Chain{syncLocks, keylock.NewRedis(app.Redis, "scribe:lock:", cfg.Pipeline.LockTTL)}
	} else {
		slog.InfoContext(ctx, "redis disabled, async sync and cross-replica locks unavailable")
	}

	blobs, err := store.NewLocalBlobStore(cfg.Ingest.ImageDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("opening image store: %w", err)
	}
	app.Blobs = blobs

	timeout := cfg.Ingest.ExternalTimeout
	tracker, err := newTracker(ctx, cfg, app.Metrics)
	if err != nil {
		app.Close()
		return nil, err
	}

	confluence := wiki.NewUnconfigured()
	if cfg.Confluence.Enabled() {
		confluence = wiki.NewConfluence(cfg.Confluence, timeout, ratelimit.New(cfg.Ingest.RatePerSecond, 1), app.Metrics)
	} else {
		slog.InfoContext(ctx, "confluence not configured")
	}

	generators, drafter, captioner := newLLMs(ctx, cfg)

	sources := ingest.NewRegistry(
		ingest.NewIssueAdapter(tracker),
		ingest.NewWikiAdapter(confluence),
		ingest.NewImageAdapter(blobs, captioner, cfg.Ingest.MaxUploadBytes),
		ingest.NewBRDAdapter(ingest.BRDConfig{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
			MaxBytes:     cfg.Ingest.MaxUploadBytes,
		}),
	)

	app.Services = service.NewServices(service.Deps{
		Stores:            stores,
		Index:             index.New(embedder, stores.Documents(), syncLocks, app.Metrics),
		Sources:           sources,
		Tracker:           tracker,
		Wiki:              confluence,
		Embedder:          embedder,
		Generators:        generators,
		Drafter:           drafter,
		Extractor:         extract.New(id.New),
		Producer:          app.producer,
		Metrics:           app.Metrics,
		PublishLocks:      publishLocks,
		SyncLocks:         syncLocks,
		TopK:              cfg.Retrieval.TopK,
		MaxContextChars:   cfg.Retrieval.MaxContextChars,
		GenerationTimeout: cfg.Retrieval.GenerationTimeout,
		ExternalTimeout:   timeout,
		SyncConcurrency:   cfg.Ingest.Concurrency,
	})

	return app, nil
}

// Close releases the queue producer, Redis and the database pool.
func (a *App) Close() {
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
}

func (a *App) openStores(ctx context.Context, cfg config.Config, dimensions int) (*store.Stores, error) {
	if cfg.Storage == config.StorageMemory {
		slog.WarnContext(ctx, "using in-memory storage, data is lost on restart")
		return store.NewMemoryStores(), nil
	}

	if err := db.Migrate(ctx, cfg.DB, dimensions); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.database = database
	slog.InfoContext(ctx, "database connected", "dimensions", dimensions)

	return store.NewStores(database.Conn(), database), nil
}

func (a *App) connectRedis(ctx context.Context, cfg config.Config) error {
	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connecting to redis: %w", err)
	}
	a.Redis = client
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)
	return nil
}

func newEmbedder(cfg config.Config) (llm.Embedder, error) {
	provider := cfg.Embedding.Provider
	if provider == llm.EmbeddingProviderOpenAI && !cfg.OpenAI.Enabled() {
		slog.Warn("OPENAI_API_KEY not set, falling back to hash embeddings")
		provider = llm.EmbeddingProviderHash
	}

	embedder, err := llm.NewEmbedder(llm.EmbeddingConfig{
		Provider:   provider,
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Limiter:    ratelimit.New(cfg.Ingest.RatePerSecond, 4),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

func newTracker(ctx context.Context, cfg config.Config, m *metrics.Metrics) (issue_tracker.IssueTracker, error) {
	limiter := ratelimit.New(cfg.Ingest.RatePerSecond, 1)
	timeout := cfg.Ingest.ExternalTimeout

	switch cfg.Tracker {
	case config.TrackerGitLab:
		if !cfg.GitLab.Enabled() {
			slog.InfoContext(ctx, "gitlab not configured")
			return issue_tracker.NewUnconfigured("gitlab", "GitLab credentials not configured"), nil
		}
		tracker, err := issue_tracker.NewGitLabTracker(cfg.GitLab, timeout, limiter, m)
		if err != nil {
			return nil, fmt.Errorf("creating gitlab tracker: %w", err)
		}
		return tracker, nil
	default:
		if !cfg.Jira.Enabled() {
			slog.InfoContext(ctx, "jira not configured")
			return issue_tracker.NewUnconfigured("jira", "Jira credentials not configured"), nil
		}
		tracker, err := issue_tracker.NewJiraTracker(cfg.Jira, timeout, limiter, m)
		if err != nil {
			return nil, fmt.Errorf("creating jira tracker: %w", err)
		}
		return tracker, nil
	}
}

// newLLMs returns nil for every model that is not configured.
func newLLMs(ctx context.Context, cfg config.Config) (*llm.Generators, llm.Client, llm.Captioner) {
	var (
		drafter   llm.Client
		captioner llm.Captioner
	)

	// LLM_* configures the default provider; the other one is added when its own key is set.
	byProvider := map[string]llm.Config{}
	if cfg.LLM.Enabled() {
		byProvider[cfg.LLM.Provider] = llm.Config{
			Provider:  cfg.LLM.Provider,
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		}
	} else {
		slog.InfoContext(ctx, "llm not configured, chat answers unavailable unless another provider is")
	}
	if _, ok := byProvider[llm.ProviderOpenAI]; !ok && cfg.OpenAI.Enabled() {
		byProvider[llm.ProviderOpenAI] = llm.Config{
			Provider:  llm.ProviderOpenAI,
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.ChatModel,
			MaxTokens: cfg.LLM.MaxTokens,
		}
	}
	if _, ok := byProvider[llm.ProviderAnthropic]; !ok && cfg.Anthropic.Enabled() {
		byProvider[llm.ProviderAnthropic] = llm.Config{
			Provider:  llm.ProviderAnthropic,
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		}
	}

	generators := map[string]llm.Generator{}
	for provider, llmCfg := range byProvider {
		g, err := llm.NewGenerator(llmCfg)
		if err != nil {
			slog.WarnContext(ctx, "llm generator unavailable", "provider", provider, "error", err)
			continue
		}
		generators[provider] = g
	}

	if cfg.OpenAI.Enabled() {
		model := cfg.LLM.Model
		if cfg.LLM.Provider != llm.ProviderOpenAI {
			model = ""
		}
		if c, err := llm.New(llm.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL, Model: model}); err == nil {
			drafter = c
		}

		c, err := llm.NewCaptioner(llm.CaptionerConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.VisionModel,
			Limiter: ratelimit.New(cfg.Ingest.RatePerSecond, 1),
		})
		if err != nil {
			slog.WarnContext(ctx, "image captioning unavailable", "error", err)
		} else {
			captioner = c
		}
	} else {
		slog.InfoContext(ctx, "OPENAI_API_KEY not set, BRD drafting and image captioning unavailable")
	}

	return llm.NewGenerators(cfg.LLM.Provider, generators), drafter, captioner
}
