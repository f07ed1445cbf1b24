package service

import (
	"time"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/keylock"
	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/internal/extract"
	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service/issue_tracker"
	"basegraph.app/scribe/internal/service/wiki"
	"basegraph.app/scribe/internal/store"
)

// Deps are the long-lived collaborators shared by every service. Generators,
// Drafter and Producer may be nil when not configured.
type Deps struct {
	Stores     *store.Stores
	Index      DocumentIndex
	Sources    ingest.Registry
	Tracker    issue_tracker.IssueTracker
	Wiki       wiki.Wiki
	Embedder   llm.Embedder
	Generators *llm.Generators
	Drafter    llm.Client
	Extractor  *extract.Extractor
	Producer   queue.Producer
	Metrics    *metrics.Metrics
	NewID      func() int64

	// PublishLocks must be shared by all StoryService instances of the process.
	PublishLocks keylock.Locker
	SyncLocks    keylock.Locker

	TopK              int
	MaxContextChars   int
	GenerationTimeout time.Duration
	ExternalTimeout   time.Duration
	SyncConcurrency   int
}

type Services struct {
	deps Deps
}

func NewServices(deps Deps) *Services {
	if deps.PublishLocks == nil {
		deps.PublishLocks = keylock.NewMap()
	}
	if deps.NewID == nil {
		deps.NewID = id.New
	}
	if deps.SyncLocks == nil {
		deps.SyncLocks = keylock.NewMap()
	}
	return &Services{deps: deps}
}

func (s *Services) Sync() SyncService {
	return NewSyncService(s.deps.Index, s.deps.Sources, s.deps.SyncLocks, s.deps.Producer, s.deps.Metrics, s.deps.SyncConcurrency)
}

func (s *Services) Retrieval() RetrievalService {
	return NewRetrievalService(s.deps.Index, s.deps.Generators, RetrievalConfig{
		TopK:              s.deps.TopK,
		MaxContextChars:   s.deps.MaxContextChars,
		GenerationTimeout: s.deps.GenerationTimeout,
	})
}

func (s *Services) Stories() StoryService {
	return NewStoryService(s.deps.Stores.Stories(), s.deps.Tracker, s.deps.PublishLocks, s.deps.Metrics, s.deps.ExternalTimeout)
}

func (s *Services) Chat() ChatService {
	return NewChatService(s.Retrieval(), s.deps.Extractor, s.Stories())
}

func (s *Services) Epics() EpicService {
	return NewEpicService(s.Retrieval(), s.deps.Extractor, s.Stories())
}

func (s *Services) BRDDrafts() BRDDraftService {
	return NewBRDDraftService(s.deps.Stores.Documents(), s.deps.Drafter, s.Stories(), s.deps.NewID, s.deps.GenerationTimeout)
}

func (s *Services) Tracker() TrackerService {
	return NewTrackerService(s.deps.Tracker, s.deps.ExternalTimeout)
}

func (s *Services) WikiPages() WikiPageService {
	return NewWikiPageService(s.deps.Wiki, s.deps.ExternalTimeout)
}

func (s *Services) Health() HealthService {
	return NewHealthService(s.deps.Stores, s.deps.Tracker, s.deps.Embedder, s.deps.Generators, s.deps.ExternalTimeout)
}
