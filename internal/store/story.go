package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/model"
)

type storyStore struct {
	q db.DBTX
}

func newStoryStore(q db.DBTX) StoryStore {
	return &storyStore{q: q}
}

const storyColumns = `id, project_key, title, description, status, source, external_key, epic_id, created_at, updated_at`

func scanStory(row pgx.Row) (*model.Story, error) {
	var (
		s      model.Story
		status string
		source string
	)
	if err := row.Scan(
		&s.ID,
		&s.ProjectKey,
		&s.Title,
		&s.Description,
		&status,
		&source,
		&s.ExternalKey,
		&s.EpicID,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = model.StoryStatus(status)
	s.Source = model.StorySource(source)
	return &s, nil
}

func (s *storyStore) Create(ctx context.Context, story *model.Story) error {
	row := s.q.QueryRow(ctx, `
INSERT INTO stories (id, project_key, title, description, status, source, epic_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+storyColumns,
		story.ID,
		story.ProjectKey,
		story.Title,
		story.Description,
		string(model.StoryStatusDraft),
		string(story.Source),
		story.EpicID,
		story.CreatedAt,
		story.UpdatedAt,
	)

	created, err := scanStory(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting story: %w", err)
	}
	*story = *created
	return nil
}

func (s *storyStore) Get(ctx context.Context, projectKey string, id int64) (*model.Story, error) {
	story, err := scanStory(s.q.QueryRow(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE project_key = $1 AND id = $2`,
		projectKey, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return story, nil
}

func (s *storyStore) UpdateDraft(ctx context.Context, story *model.Story) error {
	updated, err := scanStory(s.q.QueryRow(ctx, `
UPDATE stories
SET title = $3, description = $4, updated_at = $5
WHERE project_key = $1 AND id = $2 AND status = 'draft'
RETURNING `+storyColumns,
		story.ProjectKey,
		story.ID,
		story.Title,
		story.Description,
		story.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.missOrNotDraft(ctx, story.ProjectKey, story.ID)
		}
		return fmt.Errorf("updating story: %w", err)
	}
	*story = *updated
	return nil
}

func (s *storyStore) MarkPublished(ctx context.Context, projectKey string, id int64, externalKey string, at time.Time) (*model.Story, error) {
	published, err := scanStory(s.q.QueryRow(ctx, `
UPDATE stories
SET status = 'published', external_key = $3, updated_at = $4
WHERE project_key = $1 AND id = $2 AND status = 'draft'
RETURNING `+storyColumns,
		projectKey, id, externalKey, at,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.missOrNotDraft(ctx, projectKey, id)
		}
		return nil, fmt.Errorf("publishing story: %w", err)
	}
	return published, nil
}

// missOrNotDraft tells a missing story apart from one a conditional update skipped.
func (s *storyStore) missOrNotDraft(ctx context.Context, projectKey string, id int64) error {
	if _, err := s.Get(ctx, projectKey, id); err != nil {
		return err
	}
	return ErrNotDraft
}

func (s *storyStore) List(ctx context.Context, projectKey string) ([]model.Story, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE project_key = $1 ORDER BY created_at, id`,
		projectKey,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	defer rows.Close()

	stories := []model.Story{}
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning story: %w", err)
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stories: %w", err)
	}
	return stories, nil
}
