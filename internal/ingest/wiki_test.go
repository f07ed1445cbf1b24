package ingest_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/model"
)

var _ = Describe("Wiki adapter", func() {
	It("converts storage HTML to markdown and defaults the project to the space", func() {
		wiki := &mockWiki{
			fetchPagesFn: func(_ context.Context, spaceKey, query string, _ int) ([]model.WikiPage, error) {
				Expect(spaceKey).To(Equal("ENG"))
				Expect(query).To(Equal("payments"))
				return []model.WikiPage{
					{ID: "1", Title: "Payments", SpaceKey: "ENG", Version: 3, BodyHTML: `<h2>Retries</h2><p>We retry <strong>three</strong> times.</p><img src="x.png"/><p>See <img src="inline.png" alt="diagram"/> above.</p>`},
					{ID: "2", Title: "Empty", SpaceKey: "ENG", BodyHTML: ""},
				}, nil
			},
		}

		batch, err := ingest.NewWikiAdapter(wiki).FetchAndNormalize(context.Background(), "", ingest.SourceConfig{
			SpaceKey:    "ENG",
			SearchQuery: "payments",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(batch.Documents).To(HaveLen(1))
		Expect(batch.Failures).To(Equal([]model.SyncFailure{{SourceID: "2", Reason: "page has no content"}}))

		doc := batch.Documents[0]
		Expect(doc.ProjectKey).To(Equal("ENG"))
		Expect(doc.SourceType).To(Equal(model.SourceTypeConfluencePage))
		Expect(doc.Text).To(ContainSubstring("## Retries"))
		Expect(doc.Text).To(ContainSubstring("**three**"))
		Expect(doc.Text).NotTo(ContainSubstring("x.png"))
		Expect(doc.Text).NotTo(ContainSubstring("inline.png"))
		Expect(doc.Text).NotTo(ContainSubstring("!["))
		Expect(doc.Text).To(ContainSubstring("above."))
		Expect(doc.Metadata).To(HaveKeyWithValue("version", "3"))
	})
})
