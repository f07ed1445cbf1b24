package index_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/index"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/store"
)

type failingEmbedder struct {
	err error
}

func (f failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}
func (failingEmbedder) Dimensions() int { return 64 }
func (failingEmbedder) Model() string   { return "failing" }

func issue(project, key, text string) *model.Document {
	return &model.Document{
		ProjectKey: project,
		SourceType: model.SourceTypeJiraIssue,
		SourceID:   key,
		Text:       text,
		Metadata:   map[string]string{"key": key},
	}
}

var _ = Describe("Index", func() {
	var (
		ctx  context.Context
		docs *store.MemoryDocumentStore
		ix   *index.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		docs = store.NewMemoryDocumentStore()
		ix = index.New(llm.NewHashEmbedder(256), docs, nil, nil)
	})

	It("finds a document by its own text with near-maximal similarity", func() {
		d := issue("PROJ", "PROJ-1", "Checkout fails when the cart contains a gift card")
		Expect(ix.Upsert(ctx, d)).To(Succeed())
		Expect(ix.Upsert(ctx, issue("PROJ", "PROJ-2", "Dark mode for the settings page"))).To(Succeed())

		hits, err := ix.Query(ctx, "PROJ", d.Text, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).NotTo(BeEmpty())
		Expect(hits[0].SourceID).To(Equal("PROJ-1"))
		Expect(hits[0].Similarity).To(BeNumerically(">", 0.999))
	})

	It("never returns documents of another project", func() {
		Expect(ix.Upsert(ctx, issue("A", "A-1", "payment retries"))).To(Succeed())
		Expect(ix.Upsert(ctx, issue("B", "B-1", "payment retries"))).To(Succeed())

		hits, err := ix.Query(ctx, "A", "payment retries", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].ProjectKey).To(Equal("A"))
	})

	It("keeps ids stable across re-ingestion", func() {
		first := issue("PROJ", "PROJ-1", "original text")
		Expect(ix.Upsert(ctx, first)).To(Succeed())
		again := issue("PROJ", "PROJ-1", "original text")
		Expect(ix.Upsert(ctx, again)).To(Succeed())

		Expect(again.ID).To(Equal(first.ID))
		n, _ := docs.Count(ctx, "PROJ")
		Expect(n).To(Equal(1))
	})

	It("returns nothing for an empty or unknown project", func() {
		hits, err := ix.Query(ctx, "", "anything", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())

		hits, err = ix.Query(ctx, "UNKNOWN", "anything", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
	})

	It("rejects empty query text", func() {
		_, err := ix.Query(ctx, "PROJ", "  ", 5)
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})

	It("rejects embeddings of the wrong size", func() {
		d := issue("PROJ", "PROJ-1", "text")
		d.Embedding = make([]float32, 3)
		err := ix.Upsert(ctx, d)
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})

	It("reports embedder outages as transient errors", func() {
		Expect(ix.Upsert(ctx, issue("PROJ", "PROJ-1", "seed"))).To(Succeed())

		broken := index.New(failingEmbedder{err: fmt.Errorf("connection refused")}, docs, nil, nil)
		_, err := broken.Query(ctx, "PROJ", "seed", 5)
		Expect(errors.Is(err, domain.ErrTransient)).To(BeTrue())

		err = broken.Upsert(ctx, issue("PROJ", "PROJ-2", "new"))
		Expect(errors.Is(err, domain.ErrTransient)).To(BeTrue())
	})

	Describe("UpsertBatch", func() {
		It("writes valid documents and reports the rest", func() {
			batch := []*model.Document{
				issue("PROJ", "PROJ-1", "one"),
				issue("PROJ", "PROJ-2", "two"),
				issue("PROJ", "PROJ-3", ""),
				issue("PROJ", "PROJ-4", "four"),
			}

			ids, failures, err := ix.UpsertBatch(ctx, batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(HaveLen(3))
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].SourceID).To(Equal("PROJ-3"))

			n, _ := docs.Count(ctx, "PROJ")
			Expect(n).To(Equal(3))
		})

		It("fails as a whole when the embedder is down", func() {
			broken := index.New(failingEmbedder{err: errors.New("503")}, docs, nil, nil)
			_, _, err := broken.UpsertBatch(ctx, []*model.Document{issue("PROJ", "PROJ-1", "one")})
			Expect(errors.Is(err, domain.ErrTransient)).To(BeTrue())
		})
	})
})
