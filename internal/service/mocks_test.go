package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
)

type mockTracker struct {
	listProjectsFn   func(ctx context.Context) ([]model.TrackerProject, error)
	createIssueFn    func(ctx context.Context, projectKey, title, description string) (string, error)
	testConnectionFn func(ctx context.Context) model.ConnectionStatus

	createCalls atomic.Int32
}

func (m *mockTracker) Name() string {
	return "jira"
}

func (m *mockTracker) ListProjects(ctx context.Context) ([]model.TrackerProject, error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx)
	}
	return nil, nil
}

func (m *mockTracker) FetchIssues(context.Context, string, int) ([]model.TrackerIssue, error) {
	return nil, nil
}

func (m *mockTracker) CreateIssue(ctx context.Context, projectKey, title, description string) (string, error) {
	m.createCalls.Add(1)
	if m.createIssueFn != nil {
		return m.createIssueFn(ctx, projectKey, title, description)
	}
	return projectKey + "-1", nil
}

func (m *mockTracker) TestConnection(ctx context.Context) model.ConnectionStatus {
	if m.testConnectionFn != nil {
		return m.testConnectionFn(ctx)
	}
	return model.ConnectionStatus{Status: model.ConnectionConnected}
}

type mockIndex struct {
	upsertBatchFn func(ctx context.Context, docs []*model.Document) ([]string, []model.SyncFailure, error)
	queryFn       func(ctx context.Context, projectKey, text string, k int) ([]model.ScoredDocument, error)

	queryCalls int
}

func (m *mockIndex) UpsertBatch(ctx context.Context, docs []*model.Document) ([]string, []model.SyncFailure, error) {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, docs)
	}
	return nil, nil, nil
}

func (m *mockIndex) Query(ctx context.Context, projectKey, text string, k int) ([]model.ScoredDocument, error) {
	m.queryCalls++
	if m.queryFn != nil {
		return m.queryFn(ctx, projectKey, text, k)
	}
	return []model.ScoredDocument{}, nil
}

type mockAdapter struct {
	sourceType model.SourceType
	fetchFn    func(ctx context.Context, projectKey string, cfg ingest.SourceConfig) (*ingest.Batch, error)
}

func (m *mockAdapter) SourceType() model.SourceType {
	return m.sourceType
}

func (m *mockAdapter) FetchAndNormalize(ctx context.Context, projectKey string, cfg ingest.SourceConfig) (*ingest.Batch, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, projectKey, cfg)
	}
	return &ingest.Batch{}, nil
}

type mockGenerator struct {
	generateFn func(ctx context.Context, prompt llm.Prompt) (*llm.Generation, error)

	lastPrompt llm.Prompt
}

func (m *mockGenerator) Generate(ctx context.Context, prompt llm.Prompt) (*llm.Generation, error) {
	m.lastPrompt = prompt
	if m.generateFn != nil {
		return m.generateFn(ctx, prompt)
	}
	return &llm.Generation{Text: "ok"}, nil
}

func (m *mockGenerator) Model() string {
	return "test-model"
}

// generatorsOf serves every request with gen as the openai provider.
func generatorsOf(gen llm.Generator) *llm.Generators {
	return llm.NewGenerators(llm.ProviderOpenAI, map[string]llm.Generator{llm.ProviderOpenAI: gen})
}

// mockDrafter answers every structured request with a canned JSON body.
type mockDrafter struct {
	response string
	err      error

	lastRequest llm.Request
}

func (m *mockDrafter) Chat(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	if err := json.Unmarshal([]byte(m.response), result); err != nil {
		return nil, err
	}
	return &llm.Response{}, nil
}

func (m *mockDrafter) Model() string {
	return "test-drafter"
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, job queue.SyncJob) error

	mu   sync.Mutex
	jobs []queue.SyncJob
}

func (m *mockProducer) Enqueue(ctx context.Context, job queue.SyncJob) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, job)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.err
}
