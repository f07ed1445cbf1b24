package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/store"
)

func doc(project, id string, vec []float32, at time.Time) *model.Document {
	return &model.Document{
		ID:         id,
		ProjectKey: project,
		SourceType: model.SourceTypeJiraIssue,
		SourceID:   id,
		Text:       "text " + id,
		Embedding:  vec,
		Metadata:   map[string]string{"key": id},
		IngestedAt: at,
	}
}

var _ = Describe("MemoryDocumentStore", func() {
	var (
		ctx  context.Context
		docs *store.MemoryDocumentStore
		now  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		docs = store.NewMemoryDocumentStore()
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	It("orders by similarity and keeps projects apart", func() {
		Expect(docs.Upsert(ctx, doc("A", "a1", []float32{1, 0}, now))).To(Succeed())
		Expect(docs.Upsert(ctx, doc("A", "a2", []float32{0.6, 0.8}, now))).To(Succeed())
		Expect(docs.Upsert(ctx, doc("B", "b1", []float32{1, 0}, now))).To(Succeed())

		hits, err := docs.Search(ctx, "A", []float32{1, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(2))
		Expect(hits[0].ID).To(Equal("a1"))
		Expect(hits[0].Similarity).To(BeNumerically("~", 1.0, 1e-9))
		Expect(hits[1].ID).To(Equal("a2"))
		for _, h := range hits {
			Expect(h.ProjectKey).To(Equal("A"))
		}
	})

	It("breaks ties by most recent ingestion", func() {
		Expect(docs.Upsert(ctx, doc("A", "old", []float32{1, 0}, now))).To(Succeed())
		Expect(docs.Upsert(ctx, doc("A", "new", []float32{2, 0}, now.Add(time.Hour)))).To(Succeed())

		hits, err := docs.Search(ctx, "A", []float32{1, 0}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].ID).To(Equal("new"))
	})

	It("replaces documents with the same id", func() {
		Expect(docs.Upsert(ctx, doc("A", "a1", []float32{1, 0}, now))).To(Succeed())
		updated := doc("A", "a1", []float32{0, 1}, now.Add(time.Minute))
		updated.Text = "changed"
		Expect(docs.Upsert(ctx, updated)).To(Succeed())

		n, _ := docs.Count(ctx, "A")
		Expect(n).To(Equal(1))
		got, err := docs.Get(ctx, "A", "a1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Text).To(Equal("changed"))
	})

	It("isolates stored copies from caller mutation", func() {
		d := doc("A", "a1", []float32{1, 0}, now)
		Expect(docs.Upsert(ctx, d)).To(Succeed())
		d.Embedding[0] = 0
		d.Metadata["key"] = "mutated"

		got, _ := docs.Get(ctx, "A", "a1")
		Expect(got.Embedding[0]).To(Equal(float32(1)))
		Expect(got.Metadata["key"]).To(Equal("a1"))
	})

	It("returns nothing for unknown projects", func() {
		hits, err := docs.Search(ctx, "NOPE", []float32{1, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())

		_, err = docs.Get(ctx, "NOPE", "x")
		Expect(err).To(MatchError(store.ErrNotFound))
	})
})

var _ = Describe("MemoryStoryStore", func() {
	var (
		ctx     context.Context
		stories *store.MemoryStoryStore
		now     time.Time
	)

	newStory := func(id int64, at time.Time) *model.Story {
		return &model.Story{
			ID:          id,
			ProjectKey:  "A",
			Title:       "t",
			Description: "d",
			Source:      model.StorySourceChat,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		stories = store.NewMemoryStoryStore()
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	It("rejects duplicate ids", func() {
		Expect(stories.Create(ctx, newStory(1, now))).To(Succeed())
		Expect(stories.Create(ctx, newStory(1, now))).To(MatchError(store.ErrDuplicate))
	})

	It("lists by creation time then id", func() {
		Expect(stories.Create(ctx, newStory(3, now.Add(time.Second)))).To(Succeed())
		Expect(stories.Create(ctx, newStory(2, now))).To(Succeed())
		Expect(stories.Create(ctx, newStory(1, now))).To(Succeed())

		list, err := stories.List(ctx, "A")
		Expect(err).NotTo(HaveOccurred())
		Expect([]int64{list[0].ID, list[1].ID, list[2].ID}).To(Equal([]int64{1, 2, 3}))
	})

	It("publishes a draft once", func() {
		Expect(stories.Create(ctx, newStory(1, now))).To(Succeed())

		published, err := stories.MarkPublished(ctx, "A", 1, "PROJ-9", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(published.Status).To(Equal(model.StoryStatusPublished))
		Expect(*published.ExternalKey).To(Equal("PROJ-9"))

		_, err = stories.MarkPublished(ctx, "A", 1, "PROJ-10", now)
		Expect(err).To(MatchError(store.ErrNotDraft))
	})

	It("refuses to edit published stories", func() {
		Expect(stories.Create(ctx, newStory(1, now))).To(Succeed())
		_, err := stories.MarkPublished(ctx, "A", 1, "PROJ-9", now)
		Expect(err).NotTo(HaveOccurred())

		edit := newStory(1, now)
		edit.Title = "changed"
		Expect(stories.UpdateDraft(ctx, edit)).To(MatchError(store.ErrNotDraft))

		got, _ := stories.Get(ctx, "A", 1)
		Expect(got.Title).To(Equal("t"))
	})

	It("does not find stories of another project", func() {
		Expect(stories.Create(ctx, newStory(1, now))).To(Succeed())
		_, err := stories.Get(ctx, "B", 1)
		Expect(err).To(MatchError(store.ErrNotFound))
	})
})

var _ = Describe("MemoryDocumentStore.List", func() {
	It("filters by source type and orders by ingestion then source id", func() {
		ctx := context.Background()
		docs := store.NewMemoryDocumentStore()
		at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		section := func(sourceID string, when time.Time) *model.Document {
			d := doc("A", sourceID, []float32{1, 0}, when)
			d.SourceType = model.SourceTypeBRDSection
			return d
		}
		Expect(docs.Upsert(ctx, section("brd.txt#0002", at))).To(Succeed())
		Expect(docs.Upsert(ctx, section("brd.txt#0001", at))).To(Succeed())
		Expect(docs.Upsert(ctx, section("old.txt#0001", at.Add(-time.Hour)))).To(Succeed())
		Expect(docs.Upsert(ctx, doc("A", "A-1", []float32{1, 0}, at))).To(Succeed())

		list, err := docs.List(ctx, "A", model.SourceTypeBRDSection)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(3))
		Expect([]string{list[0].SourceID, list[1].SourceID, list[2].SourceID}).To(Equal([]string{"old.txt#0001", "brd.txt#0001", "brd.txt#0002"}))
		Expect(list[0].Embedding).To(BeNil())
	})
})
