package store

import (
	"context"

	"basegraph.app/scribe/core/db"
)

// Stores hands out the document and story stores of one backend.
type Stores struct {
	documents DocumentStore
	stories   StoryStore
	pinger    Pinger
	backend   string
}

// NewStores returns Postgres-backed stores running queries on q.
func NewStores(q db.DBTX, pinger Pinger) *Stores {
	return &Stores{
		documents: newDocumentStore(q),
		stories:   newStoryStore(q),
		pinger:    pinger,
		backend:   "postgres",
	}
}

// NewMemoryStores returns process-local stores. Data is lost on restart.
func NewMemoryStores() *Stores {
	return &Stores{
		documents: NewMemoryDocumentStore(),
		stories:   NewMemoryStoryStore(),
		backend:   "memory",
	}
}

func (s *Stores) Documents() DocumentStore {
	return s.documents
}

func (s *Stores) Stories() StoryStore {
	return s.stories
}

func (s *Stores) Backend() string {
	return s.backend
}

func (s *Stores) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.Ping(ctx)
}
