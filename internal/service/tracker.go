package service

import (
	"context"
	"time"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/issue_tracker"
)

type TrackerService interface {
	ListProjects(ctx context.Context) ([]model.TrackerProject, error)
	TestConnection(ctx context.Context) model.ConnectionStatus
}

type trackerService struct {
	tracker issue_tracker.IssueTracker
	timeout time.Duration
}

func NewTrackerService(tracker issue_tracker.IssueTracker, timeout time.Duration) TrackerService {
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &trackerService{tracker: tracker, timeout: timeout}
}

func (s *trackerService) ListProjects(ctx context.Context) ([]model.TrackerProject, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	projects, err := s.tracker.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []model.TrackerProject{}
	}
	return projects, nil
}

func (s *trackerService) TestConnection(ctx context.Context) model.ConnectionStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.tracker.TestConnection(ctx)
}
