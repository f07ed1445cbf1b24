package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/keylock"
	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/issue_tracker"
	"basegraph.app/scribe/internal/store"
)

const defaultExternalTimeout = 30 * time.Second

type StoryService interface {
	Create(ctx context.Context, projectKey string, candidate model.StoryCandidate, source model.StorySource) (*model.Story, error)
	Get(ctx context.Context, projectKey string, id int64) (*model.Story, error)
	Update(ctx context.Context, projectKey string, id int64, patch model.StoryPatch) (*model.Story, error)
	// Publish creates the story's tracker issue and marks it published. A
	// story is published at most once; a tracker failure leaves it a draft.
	Publish(ctx context.Context, projectKey string, id int64) (*model.Story, error)
	List(ctx context.Context, projectKey string) ([]model.Story, error)
}

type storyService struct {
	stories store.StoryStore
	tracker issue_tracker.IssueTracker
	locks   keylock.Locker
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
	newID   func() int64
}

// NewStoryService returns a StoryService. locks serializes publishes per
// story and must be shared by every instance in the process.
func NewStoryService(stories store.StoryStore, tracker issue_tracker.IssueTracker, locks keylock.Locker, m *metrics.Metrics, timeout time.Duration) StoryService {
	if locks == nil {
		locks = keylock.NewMap()
	}
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &storyService{
		stories: stories,
		tracker: tracker,
		locks:   locks,
		metrics: m,
		timeout: timeout,
		now:     time.Now,
		newID:   id.New,
	}
}

func (s *storyService) Create(ctx context.Context, projectKey string, candidate model.StoryCandidate, source model.StorySource) (*model.Story, error) {
	if projectKey == "" {
		return nil, domain.Validation("project_key is required")
	}
	if strings.TrimSpace(candidate.Title) == "" {
		return nil, domain.Validation("title is required")
	}
	if candidate.ID == 0 {
		candidate.ID = s.newID()
	}

	now := s.now().UTC()
	story := &model.Story{
		ID:          candidate.ID,
		ProjectKey:  projectKey,
		Title:       candidate.Title,
		Description: candidate.Description,
		Status:      model.StoryStatusDraft,
		Source:      source,
		EpicID:      candidate.EpicID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.stories.Create(ctx, story); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domain.Duplicate(fmt.Sprintf("story %d already exists", candidate.ID))
		}
		return nil, fmt.Errorf("creating story: %w", err)
	}
	s.metrics.StoryCreated(string(source))

	slog.InfoContext(ctx, "story created",
		"project_key", projectKey,
		"story_id", story.ID,
		"source", source)

	return story, nil
}

func (s *storyService) Get(ctx context.Context, projectKey string, id int64) (*model.Story, error) {
	story, err := s.stories.Get(ctx, projectKey, id)
	if err != nil {
		return nil, storyError(err, id)
	}
	return story, nil
}

func (s *storyService) Update(ctx context.Context, projectKey string, id int64, patch model.StoryPatch) (*model.Story, error) {
	if patch.Empty() {
		return nil, domain.Validation("no updates provided")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, domain.Validation("title cannot be empty")
	}

	// Edits and publishes of one story never interleave.
	unlock, err := s.locks.Lock(ctx, storyLockKey(projectKey, id))
	if err != nil {
		return nil, fmt.Errorf("locking story: %w", err)
	}
	defer unlock()

	story, err := s.stories.Get(ctx, projectKey, id)
	if err != nil {
		return nil, storyError(err, id)
	}
	if story.IsPublished() {
		return nil, domain.InvalidState("cannot edit a published story")
	}

	if patch.Title != nil {
		story.Title = *patch.Title
	}
	if patch.Description != nil {
		story.Description = *patch.Description
	}
	story.UpdatedAt = s.now().UTC()

	if err := s.stories.UpdateDraft(ctx, story); err != nil {
		return nil, storyError(err, id)
	}
	return story, nil
}

func (s *storyService) Publish(ctx context.Context, projectKey string, id int64) (*model.Story, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectKey: &projectKey,
		StoryID:    &id,
		Component:  "scribe.service.story",
	})

	unlock, err := s.locks.Lock(ctx, storyLockKey(projectKey, id))
	if err != nil {
		return nil, fmt.Errorf("locking story: %w", err)
	}
	defer unlock()

	story, err := s.stories.Get(ctx, projectKey, id)
	if err != nil {
		return nil, storyError(err, id)
	}
	if story.IsPublished() {
		s.metrics.StoryPublished("already_published")
		return nil, domain.InvalidState(fmt.Sprintf("story already published as %s", derefString(story.ExternalKey)))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	externalKey, err := s.tracker.CreateIssue(callCtx, projectKey, story.Title, story.Description)
	cancel()
	if err != nil {
		s.metrics.StoryPublished("tracker_error")
		slog.WarnContext(ctx, "publish failed, story stays a draft", "error", err)
		return nil, err
	}

	// The issue exists now; record it even if the caller has gone away.
	published, err := s.stories.MarkPublished(context.WithoutCancel(ctx), projectKey, id, externalKey, s.now().UTC())
	if err != nil {
		s.metrics.StoryPublished("store_error")
		slog.ErrorContext(ctx, "issue created but story not marked published",
			"external_key", externalKey,
			"error", err)
		return nil, &domain.UnrecordedIssueError{ExternalKey: externalKey, Err: storyError(err, id)}
	}
	s.metrics.StoryPublished("published")

	slog.InfoContext(ctx, "story published", "external_key", externalKey)
	return published, nil
}

func (s *storyService) List(ctx context.Context, projectKey string) ([]model.Story, error) {
	if projectKey == "" {
		return nil, domain.Validation("project_key is required")
	}
	stories, err := s.stories.List(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	return stories, nil
}

func storyLockKey(projectKey string, id int64) string {
	return "story:" + projectKey + ":" + strconv.FormatInt(id, 10)
}

func storyError(err error, id int64) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.NotFound(fmt.Sprintf("story %d not found", id))
	case errors.Is(err, store.ErrNotDraft):
		return domain.InvalidState("story is already published")
	case errors.Is(err, store.ErrDuplicate):
		return domain.Duplicate(fmt.Sprintf("story %d already exists", id))
	default:
		return fmt.Errorf("story %d: %w", id, err)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
