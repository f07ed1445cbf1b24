package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/issue_tracker"
)

const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
)

type HealthServices struct {
	Storage      string   `json:"storage"`
	Tracker      string   `json:"jira"`
	Embedding    string   `json:"embedding"`
	LLMProviders []string `json:"llm_providers"`
}

type HealthReport struct {
	Status   string         `json:"status"`
	Services HealthServices `json:"services"`
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService interface {
	Check(ctx context.Context) HealthReport
}

type healthService struct {
	storage    Pinger
	tracker    issue_tracker.IssueTracker
	embedder   llm.Embedder
	generators *llm.Generators
	timeout    time.Duration
}

func NewHealthService(storage Pinger, tracker issue_tracker.IssueTracker, embedder llm.Embedder, generators *llm.Generators, timeout time.Duration) HealthService {
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &healthService{
		storage:    storage,
		tracker:    tracker,
		embedder:   embedder,
		generators: generators,
		timeout:    timeout,
	}
}

// Check pings storage and the tracker in parallel. Any configured dependency
// that fails, or having no language model, degrades the report.
func (s *healthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report := HealthReport{
		Status: HealthStatusHealthy,
		Services: HealthServices{
			Storage:      "connected",
			Embedding:    "not_configured",
			LLMProviders: []string{},
		},
	}

	var (
		storageErr error
		tracker    model.ConnectionStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		storageErr = s.storage.Ping(gctx)
		return nil
	})
	g.Go(func() error {
		tracker = s.tracker.TestConnection(gctx)
		return nil
	})
	_ = g.Wait()

	if storageErr != nil {
		report.Services.Storage = "error"
		report.Status = HealthStatusDegraded
	}

	report.Services.Tracker = string(tracker.Status)
	if tracker.Status == model.ConnectionError {
		report.Status = HealthStatusDegraded
	}

	if s.embedder != nil {
		report.Services.Embedding = s.embedder.Model()
	}

	report.Services.LLMProviders = s.generators.Providers()
	if len(report.Services.LLMProviders) == 0 {
		report.Status = HealthStatusDegraded
	}

	return report
}
