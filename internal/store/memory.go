package store

import (
	"context"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"basegraph.app/scribe/internal/model"
)

// MemoryDocumentStore keeps documents in process. Stored documents are never
// mutated in place: Upsert swaps in a fresh copy, so a concurrent Search sees
// either the old or the new version of a document.
type MemoryDocumentStore struct {
	mu       sync.RWMutex
	projects map[string]map[string]*model.Document
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{projects: make(map[string]map[string]*model.Document)}
}

func copyDocument(doc *model.Document) *model.Document {
	c := *doc
	c.Embedding = slices.Clone(doc.Embedding)
	c.Metadata = maps.Clone(doc.Metadata)
	return &c
}

func (s *MemoryDocumentStore) Upsert(_ context.Context, doc *model.Document) error {
	stored := copyDocument(doc)

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.projects[doc.ProjectKey]
	if !ok {
		docs = make(map[string]*model.Document)
		s.projects[doc.ProjectKey] = docs
	}
	docs[doc.ID] = stored
	return nil
}

func (s *MemoryDocumentStore) Search(_ context.Context, projectKey string, embedding []float32, k int) ([]model.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	docs := make([]*model.Document, 0, len(s.projects[projectKey]))
	for _, d := range s.projects[projectKey] {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	hits := make([]model.ScoredDocument, 0, len(docs))
	for _, d := range docs {
		hit := model.ScoredDocument{Document: *copyDocument(d), Similarity: cosine(embedding, d.Embedding)}
		hit.Embedding = nil
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if !hits[i].IngestedAt.Equal(hits[j].IngestedAt) {
			return hits[i].IngestedAt.After(hits[j].IngestedAt)
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, projectKey, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.projects[projectKey][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(d), nil
}

func (s *MemoryDocumentStore) List(_ context.Context, projectKey string, sourceType model.SourceType) ([]model.Document, error) {
	s.mu.RLock()
	docs := make([]model.Document, 0)
	for _, d := range s.projects[projectKey] {
		if d.SourceType != sourceType {
			continue
		}
		c := *copyDocument(d)
		c.Embedding = nil
		docs = append(docs, c)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].IngestedAt.Equal(docs[j].IngestedAt) {
			return docs[i].IngestedAt.Before(docs[j].IngestedAt)
		}
		return docs[i].SourceID < docs[j].SourceID
	})
	return docs, nil
}

func (s *MemoryDocumentStore) Count(_ context.Context, projectKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects[projectKey]), nil
}

func (s *MemoryDocumentStore) Ping(context.Context) error {
	return nil
}

// cosine returns 0 when either vector has no magnitude.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MemoryStoryStore keeps stories in process.
type MemoryStoryStore struct {
	mu       sync.Mutex
	projects map[string]map[int64]*model.Story
}

func NewMemoryStoryStore() *MemoryStoryStore {
	return &MemoryStoryStore{projects: make(map[string]map[int64]*model.Story)}
}

func copyStory(s *model.Story) *model.Story {
	c := *s
	if s.ExternalKey != nil {
		key := *s.ExternalKey
		c.ExternalKey = &key
	}
	if s.EpicID != nil {
		epicID := *s.EpicID
		c.EpicID = &epicID
	}
	return &c
}

func (s *MemoryStoryStore) Create(_ context.Context, story *model.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stories, ok := s.projects[story.ProjectKey]
	if !ok {
		stories = make(map[int64]*model.Story)
		s.projects[story.ProjectKey] = stories
	}
	if _, exists := stories[story.ID]; exists {
		return ErrDuplicate
	}

	story.Status = model.StoryStatusDraft
	story.ExternalKey = nil
	stories[story.ID] = copyStory(story)
	return nil
}

func (s *MemoryStoryStore) Get(_ context.Context, projectKey string, id int64) (*model.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	story, ok := s.projects[projectKey][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyStory(story), nil
}

func (s *MemoryStoryStore) UpdateDraft(_ context.Context, story *model.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.projects[story.ProjectKey][story.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != model.StoryStatusDraft {
		return ErrNotDraft
	}

	current.Title = story.Title
	current.Description = story.Description
	current.UpdatedAt = story.UpdatedAt
	*story = *copyStory(current)
	return nil
}

func (s *MemoryStoryStore) MarkPublished(_ context.Context, projectKey string, id int64, externalKey string, at time.Time) (*model.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.projects[projectKey][id]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Status != model.StoryStatusDraft {
		return nil, ErrNotDraft
	}

	current.Status = model.StoryStatusPublished
	current.ExternalKey = &externalKey
	current.UpdatedAt = at
	return copyStory(current), nil
}

func (s *MemoryStoryStore) List(_ context.Context, projectKey string) ([]model.Story, error) {
	s.mu.Lock()
	stories := make([]model.Story, 0, len(s.projects[projectKey]))
	for _, story := range s.projects[projectKey] {
		stories = append(stories, *copyStory(story))
	}
	s.mu.Unlock()

	sort.Slice(stories, func(i, j int) bool {
		if !stories[i].CreatedAt.Equal(stories[j].CreatedAt) {
			return stories[i].CreatedAt.Before(stories[j].CreatedAt)
		}
		return stories[i].ID < stories[j].ID
	})
	return stories, nil
}
