package handler_test

import (
	"context"
	"io"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

type mockSyncService struct {
	syncFn    func(ctx context.Context, req service.SyncRequest) (*model.SyncResult, error)
	enqueueFn func(ctx context.Context, req service.SyncRequest) (string, error)
	lastReq   service.SyncRequest
	content   []byte
}

func (m *mockSyncService) Sync(ctx context.Context, req service.SyncRequest) (*model.SyncResult, error) {
	m.lastReq = req
	if req.Source.Content != nil {
		m.content, _ = io.ReadAll(req.Source.Content)
	}
	if m.syncFn != nil {
		return m.syncFn(ctx, req)
	}
	return &model.SyncResult{ProjectKey: req.ProjectKey, SourceType: req.SourceType}, nil
}

func (m *mockSyncService) Enqueue(ctx context.Context, req service.SyncRequest) (string, error) {
	m.lastReq = req
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, req)
	}
	return "job-1", nil
}

type mockStoryService struct {
	createFn  func(ctx context.Context, projectKey string, candidate model.StoryCandidate, source model.StorySource) (*model.Story, error)
	getFn     func(ctx context.Context, projectKey string, id int64) (*model.Story, error)
	updateFn  func(ctx context.Context, projectKey string, id int64, patch model.StoryPatch) (*model.Story, error)
	publishFn func(ctx context.Context, projectKey string, id int64) (*model.Story, error)
	listFn    func(ctx context.Context, projectKey string) ([]model.Story, error)
}

func (m *mockStoryService) Create(ctx context.Context, projectKey string, candidate model.StoryCandidate, source model.StorySource) (*model.Story, error) {
	if m.createFn != nil {
		return m.createFn(ctx, projectKey, candidate, source)
	}
	return &model.Story{ID: 1, ProjectKey: projectKey, Title: candidate.Title, Source: source, Status: model.StoryStatusDraft}, nil
}

func (m *mockStoryService) Get(ctx context.Context, projectKey string, id int64) (*model.Story, error) {
	if m.getFn != nil {
		return m.getFn(ctx, projectKey, id)
	}
	return nil, nil
}

func (m *mockStoryService) Update(ctx context.Context, projectKey string, id int64, patch model.StoryPatch) (*model.Story, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, projectKey, id, patch)
	}
	return nil, nil
}

func (m *mockStoryService) Publish(ctx context.Context, projectKey string, id int64) (*model.Story, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, projectKey, id)
	}
	return nil, nil
}

func (m *mockStoryService) List(ctx context.Context, projectKey string) ([]model.Story, error) {
	if m.listFn != nil {
		return m.listFn(ctx, projectKey)
	}
	return nil, nil
}

type mockBRDDraftService struct {
	generateFn func(ctx context.Context, req service.BRDDraftRequest) (*service.BRDDraftResult, error)
}

func (m *mockBRDDraftService) Generate(ctx context.Context, req service.BRDDraftRequest) (*service.BRDDraftResult, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return &service.BRDDraftResult{}, nil
}

type mockChatService struct {
	chatFn func(ctx context.Context, req service.ChatRequest) (*service.ChatResult, error)
}

func (m *mockChatService) Chat(ctx context.Context, req service.ChatRequest) (*service.ChatResult, error) {
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &service.ChatResult{}, nil
}

type mockTrackerService struct {
	listProjectsFn   func(ctx context.Context) ([]model.TrackerProject, error)
	testConnectionFn func(ctx context.Context) model.ConnectionStatus
}

func (m *mockTrackerService) ListProjects(ctx context.Context) ([]model.TrackerProject, error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx)
	}
	return []model.TrackerProject{}, nil
}

func (m *mockTrackerService) TestConnection(ctx context.Context) model.ConnectionStatus {
	if m.testConnectionFn != nil {
		return m.testConnectionFn(ctx)
	}
	return model.ConnectionStatus{Status: model.ConnectionNotConfigured}
}

type mockWikiPageService struct {
	createFn func(ctx context.Context, page model.NewWikiPage) (*model.WikiPage, error)
}

func (m *mockWikiPageService) Create(ctx context.Context, page model.NewWikiPage) (*model.WikiPage, error) {
	if m.createFn != nil {
		return m.createFn(ctx, page)
	}
	return &model.WikiPage{ID: "1", Title: page.Title, SpaceKey: page.SpaceKey}, nil
}

type mockEpicService struct {
	generateFn func(ctx context.Context, req service.EpicRequest) (*service.EpicResult, error)
}

func (m *mockEpicService) Generate(ctx context.Context, req service.EpicRequest) (*service.EpicResult, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return &service.EpicResult{}, nil
}
