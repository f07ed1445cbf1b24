package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/index"
	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/store"
)

func issueDocs(projectKey string, n int) []*model.Document {
	docs := make([]*model.Document, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, &model.Document{
			ProjectKey: projectKey,
			SourceType: model.SourceTypeJiraIssue,
			SourceID:   fmt.Sprintf("%s-%d", projectKey, i),
			Text:       fmt.Sprintf("Issue Key: %s-%d\nSummary: task %d", projectKey, i, i),
		})
	}
	return docs
}

var _ = Describe("SyncService", func() {
	var (
		ctx     context.Context
		docs    *store.MemoryDocumentStore
		adapter *mockAdapter
		svc     service.SyncService
	)

	BeforeEach(func() {
		ctx = context.Background()
		docs = store.NewMemoryDocumentStore()
		adapter = &mockAdapter{sourceType: model.SourceTypeJiraIssue}
		ix := index.New(llm.NewHashEmbedder(64), docs, nil, nil)
		svc = service.NewSyncService(ix, ingest.NewRegistry(adapter), nil, nil, nil, 2)
	})

	It("indexes the good items and reports the malformed one", func() {
		adapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
			return &ingest.Batch{
				Documents: issueDocs(projectKey, 4),
				Failures:  []model.SyncFailure{{SourceID: "PRJ-5", Reason: "issue has no summary"}},
			}, nil
		}

		result, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Succeeded).To(Equal(4))
		Expect(result.Failed).To(ConsistOf(model.SyncFailure{SourceID: "PRJ-5", Reason: "issue has no summary"}))
		Expect(result.DocumentIDs).To(HaveLen(4))
		Expect(result.Partial()).To(BeTrue())
		Expect(result.Message()).To(ContainSubstring("4 issues ingested, 1 failed"))

		count, err := docs.Count(ctx, "PRJ")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(4))
	})

	It("does not duplicate documents when the same source is synced twice", func() {
		adapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
			return &ingest.Batch{Documents: issueDocs(projectKey, 3)}, nil
		}

		for range 2 {
			_, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
			Expect(err).NotTo(HaveOccurred())
		}

		count, err := docs.Count(ctx, "PRJ")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(3))
	})

	It("indexes batches larger than one embedding request", func() {
		adapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
			return &ingest.Batch{Documents: issueDocs(projectKey, 70)}, nil
		}

		result, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Succeeded).To(Equal(70))
		Expect(result.Failed).To(BeEmpty())
	})

	It("requires a project", func() {
		_, err := svc.Sync(ctx, service.SyncRequest{SourceType: model.SourceTypeJiraIssue})
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})

	It("rejects a source type without an adapter", func() {
		_, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeImage})
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})

	It("passes adapter errors through", func() {
		adapter.fetchFn = func(context.Context, string, ingest.SourceConfig) (*ingest.Batch, error) {
			return nil, domain.NotConfigured("jira")
		}

		_, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
		Expect(errors.Is(err, domain.ErrConfiguration)).To(BeTrue())
	})

	It("files wiki pages under the space key when no project is given", func() {
		wikiAdapter := &mockAdapter{sourceType: model.SourceTypeConfluencePage}
		var gotProject string
		wikiAdapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
			gotProject = projectKey
			return &ingest.Batch{}, nil
		}
		ix := index.New(llm.NewHashEmbedder(64), docs, nil, nil)
		svc = service.NewSyncService(ix, ingest.NewRegistry(wikiAdapter), nil, nil, nil, 1)

		result, err := svc.Sync(ctx, service.SyncRequest{
			SourceType: model.SourceTypeConfluencePage,
			Source:     ingest.SourceConfig{SpaceKey: "DOCS"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(gotProject).To(Equal("DOCS"))
		Expect(result.ProjectKey).To(Equal("DOCS"))
	})

	Context("when the embedding service is down", func() {
		var (
			mu        sync.Mutex
			discarded []string
		)

		BeforeEach(func() {
			discarded = nil
			ix := &mockIndex{upsertBatchFn: func(_ context.Context, batch []*model.Document) ([]string, []model.SyncFailure, error) {
				for _, doc := range batch {
					doc.ID = doc.SourceID
				}
				return nil, nil, domain.Transient("embed", "embedding service unavailable, try again", errors.New("502"))
			}}
			adapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
				return &ingest.Batch{
					Documents: issueDocs(projectKey, 2),
					Discard: func(_ context.Context, doc *model.Document) {
						mu.Lock()
						defer mu.Unlock()
						discarded = append(discarded, doc.SourceID)
					},
				}, nil
			}
			svc = service.NewSyncService(ix, ingest.NewRegistry(adapter), nil, nil, nil, 2)
		})

		It("returns a transient error and releases every document", func() {
			_, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
			Expect(errors.Is(err, domain.ErrTransient)).To(BeTrue())
			Expect(discarded).To(ConsistOf("PRJ-1", "PRJ-2"))
		})
	})

	It("reports each failed document once when a group has rejects and an embedding outage", func() {
		embedder := &outageEmbedder{HashEmbedder: llm.NewHashEmbedder(64), failOn: "FAIL"}
		ix := index.New(embedder, docs, nil, nil)
		svc = service.NewSyncService(ix, ingest.NewRegistry(adapter), nil, nil, nil, 1)

		adapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
			batch := issueDocs(projectKey, 33)
			batch[0].Embedding = []float32{0.1, 0.2, 0.3}
			batch[1].Text = "FAIL"
			return &ingest.Batch{Documents: batch}, nil
		}

		result, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Succeeded).To(Equal(1))
		Expect(result.Failed).To(HaveLen(32))

		seen := map[string]int{}
		for _, f := range result.Failed {
			seen[f.SourceID]++
		}
		Expect(seen).To(HaveLen(32))
		Expect(seen).NotTo(HaveKey("PRJ-33"))
		Expect(result.Failed).To(ContainElement(model.SyncFailure{
			SourceID: "PRJ-1",
			Reason:   "embedding has 3 dimensions, index uses 64",
		}))
		Expect(result.Message()).To(ContainSubstring("1 issue ingested, 32 failed"))
	})

	It("releases documents the index rejected", func() {
		var discarded []string
		ix := &mockIndex{upsertBatchFn: func(_ context.Context, batch []*model.Document) ([]string, []model.SyncFailure, error) {
			batch[0].ID = "doc-1"
			batch[1].ID = "doc-2"
			return []string{"doc-1"}, []model.SyncFailure{{SourceID: batch[1].SourceID, Reason: "write failed"}}, nil
		}}
		adapter.fetchFn = func(_ context.Context, projectKey string, _ ingest.SourceConfig) (*ingest.Batch, error) {
			return &ingest.Batch{
				Documents: issueDocs(projectKey, 2),
				Discard: func(_ context.Context, doc *model.Document) {
					discarded = append(discarded, doc.SourceID)
				},
			}, nil
		}
		svc = service.NewSyncService(ix, ingest.NewRegistry(adapter), nil, nil, nil, 1)

		result, err := svc.Sync(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Succeeded).To(Equal(1))
		Expect(discarded).To(Equal([]string{"PRJ-2"}))
	})

	Describe("Enqueue", func() {
		It("fails when no job queue is configured", func() {
			_, err := svc.Enqueue(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeJiraIssue})
			Expect(errors.Is(err, domain.ErrConfiguration)).To(BeTrue())
		})

		It("puts a sync job on the stream", func() {
			producer := &mockProducer{}
			ix := index.New(llm.NewHashEmbedder(64), docs, nil, nil)
			svc = service.NewSyncService(ix, ingest.NewRegistry(adapter), nil, producer, nil, 1)

			jobID, err := svc.Enqueue(ctx, service.SyncRequest{
				ProjectKey: "PRJ",
				SourceType: model.SourceTypeJiraIssue,
				Source:     ingest.SourceConfig{MaxResults: 25},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(jobID).NotTo(BeEmpty())
			Expect(producer.jobs).To(HaveLen(1))
			Expect(producer.jobs[0].JobID).To(Equal(jobID))
			Expect(producer.jobs[0].TaskType).To(Equal(queue.TaskTypeSyncIssues))
			Expect(producer.jobs[0].MaxResults).To(Equal(25))

			req := service.JobSyncRequest(producer.jobs[0])
			Expect(req.SourceType).To(Equal(model.SourceTypeJiraIssue))
			Expect(req.ProjectKey).To(Equal("PRJ"))
		})

		It("refuses upload sources", func() {
			producer := &mockProducer{}
			svc = service.NewSyncService(&mockIndex{}, ingest.NewRegistry(adapter), nil, producer, nil, 1)

			_, err := svc.Enqueue(ctx, service.SyncRequest{ProjectKey: "PRJ", SourceType: model.SourceTypeImage})
			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
			Expect(producer.jobs).To(BeEmpty())
		})
	})
})

// outageEmbedder fails any request that contains failOn.
type outageEmbedder struct {
	*llm.HashEmbedder
	failOn string
}

func (e *outageEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if text == e.failOn {
			return nil, errors.New("embedding endpoint returned 503")
		}
	}
	return e.HashEmbedder.Embed(ctx, texts)
}
