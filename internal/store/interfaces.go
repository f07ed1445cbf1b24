package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/scribe/internal/model"
)

var (
	// ErrNotFound is returned when a requested entity does not exist in the namespace.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when creating an entity whose id already exists.
	ErrDuplicate = errors.New("duplicate")
	// ErrNotDraft is returned by conditional writes when the story is no longer a draft.
	ErrNotDraft = errors.New("story is not a draft")
)

// DocumentStore persists embedded documents. Every method is scoped to one
// project namespace.
type DocumentStore interface {
	// Upsert inserts or atomically replaces the document with the same ID.
	Upsert(ctx context.Context, doc *model.Document) error
	// Search returns up to k documents of projectKey ordered by cosine
	// similarity to embedding, ties broken by most recent IngestedAt.
	Search(ctx context.Context, projectKey string, embedding []float32, k int) ([]model.ScoredDocument, error)
	Get(ctx context.Context, projectKey, id string) (*model.Document, error)
	// List returns the project's documents of one source type without
	// embeddings, ordered by IngestedAt then SourceID.
	List(ctx context.Context, projectKey string, sourceType model.SourceType) ([]model.Document, error)
	Count(ctx context.Context, projectKey string) (int, error)
}

// StoryStore persists stories. Every method is scoped to one project namespace.
type StoryStore interface {
	Create(ctx context.Context, story *model.Story) error
	Get(ctx context.Context, projectKey string, id int64) (*model.Story, error)
	// UpdateDraft overwrites title and description only while the story is a draft.
	UpdateDraft(ctx context.Context, story *model.Story) error
	// MarkPublished transitions draft -> published. Returns ErrNotDraft if the
	// story was already published.
	MarkPublished(ctx context.Context, projectKey string, id int64, externalKey string, at time.Time) (*model.Story, error)
	// List returns the project's stories ordered by CreatedAt, then ID.
	List(ctx context.Context, projectKey string) ([]model.Story, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}
