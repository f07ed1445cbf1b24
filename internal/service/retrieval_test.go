package service_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

func scored(sourceID, title, text string, similarity float64) model.ScoredDocument {
	return model.ScoredDocument{
		Document: model.Document{
			ProjectKey: "PRJ",
			SourceType: model.SourceTypeConfluencePage,
			SourceID:   sourceID,
			Text:       text,
			Metadata:   map[string]string{"title": title},
		},
		Similarity: similarity,
	}
}

var _ = Describe("RetrievalService", func() {
	var (
		ctx       context.Context
		ix        *mockIndex
		generator *mockGenerator
		svc       service.RetrievalService
	)

	BeforeEach(func() {
		ctx = context.Background()
		ix = &mockIndex{}
		generator = &mockGenerator{}
		svc = service.NewRetrievalService(ix, generatorsOf(generator), service.RetrievalConfig{TopK: 3, MaxContextChars: 2000, GenerationTimeout: time.Second})
	})

	It("fails fast without a project", func() {
		_, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "", Message: "what is the login flow?"})
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
		Expect(ix.queryCalls).To(BeZero())
	})

	It("rejects an empty message", func() {
		_, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "   "})
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})

	It("grounds the prompt on the retrieved documents and returns the raw text", func() {
		var gotK int
		ix.queryFn = func(_ context.Context, projectKey, _ string, k int) ([]model.ScoredDocument, error) {
			gotK = k
			return []model.ScoredDocument{scored("1", "Login flow", "Users sign in with SSO.", 0.9)}, nil
		}
		generator.generateFn = func(context.Context, llm.Prompt) (*llm.Generation, error) {
			return &llm.Generation{Text: "  Users sign in with SSO.\n"}, nil
		}

		answer, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "how do users log in?"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Text).To(Equal("  Users sign in with SSO.\n"))
		Expect(answer.Sources).To(HaveLen(1))
		Expect(gotK).To(Equal(3))
		Expect(generator.lastPrompt.User).To(ContainSubstring("Document 1:\nTitle: Login flow"))
		Expect(generator.lastPrompt.User).To(HaveSuffix("User: how do users log in?"))
		Expect(answer.Provider).To(Equal(llm.ProviderOpenAI))
	})

	It("answers with the provider the request names", func() {
		claude := &mockGenerator{generateFn: func(context.Context, llm.Prompt) (*llm.Generation, error) {
			return &llm.Generation{Text: "from claude"}, nil
		}}
		svc = service.NewRetrievalService(ix, llm.NewGenerators(llm.ProviderOpenAI, map[string]llm.Generator{
			llm.ProviderOpenAI:    generator,
			llm.ProviderAnthropic: claude,
		}), service.RetrievalConfig{GenerationTimeout: time.Second})

		answer, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "hello", Provider: llm.ProviderAnthropic})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer.Text).To(Equal("from claude"))
		Expect(answer.Provider).To(Equal(llm.ProviderAnthropic))
		Expect(generator.lastPrompt.User).To(BeEmpty())
	})

	It("rejects an unknown provider before retrieving", func() {
		_, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "hello", Provider: "mistral"})
		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
		Expect(ix.queryCalls).To(BeZero())
	})

	It("reports a provider without credentials as not configured", func() {
		_, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "hello", Provider: llm.ProviderAnthropic})
		Expect(errors.Is(err, domain.ErrConfiguration)).To(BeTrue())
	})

	It("replaces the answering instructions when the request carries its own", func() {
		ix.queryFn = func(context.Context, string, string, int) ([]model.ScoredDocument, error) {
			return []model.ScoredDocument{scored("1", "Checkout", "Cards only.", 0.8)}, nil
		}

		_, err := svc.Answer(ctx, service.AnswerRequest{
			ProjectKey:   "PRJ",
			Message:      "user stories for checkout",
			Instructions: "Group the work into epics.",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(generator.lastPrompt.User).To(HavePrefix("Group the work into epics.\n\nContext:\nDocument 1:"))
		Expect(generator.lastPrompt.User).NotTo(ContainSubstring("Story Title:"))
		Expect(generator.lastPrompt.User).To(HaveSuffix("User: user stories for checkout"))
	})

	It("surfaces a generation failure as transient without an answer", func() {
		generator.generateFn = func(context.Context, llm.Prompt) (*llm.Generation, error) {
			return nil, errors.New("503 from provider")
		}

		answer, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "hello"})
		Expect(answer).To(BeNil())
		Expect(errors.Is(err, domain.ErrTransient)).To(BeTrue())
		Expect(domain.MessageOf(err)).To(ContainSubstring("try again"))
	})

	It("passes retrieval errors through", func() {
		ix.queryFn = func(context.Context, string, string, int) ([]model.ScoredDocument, error) {
			return nil, domain.Transient("embed", "embedding service unavailable, try again", errors.New("timeout"))
		}

		_, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "hello"})
		Expect(errors.Is(err, domain.ErrTransient)).To(BeTrue())
	})

	It("reports a missing generator as not configured", func() {
		svc = service.NewRetrievalService(ix, nil, service.RetrievalConfig{})

		_, err := svc.Answer(ctx, service.AnswerRequest{ProjectKey: "PRJ", Message: "hello"})
		Expect(errors.Is(err, domain.ErrConfiguration)).To(BeTrue())
	})
})

var _ = Describe("BuildPrompt", func() {
	It("asks for the story format when the user wants stories", func() {
		prompt := service.BuildPrompt("Write user stories for checkout", nil, 1000)
		Expect(prompt).To(ContainSubstring("Story Title: [A clear, concise title for the story]"))
		Expect(prompt).To(ContainSubstring("Description: As a [user type], I want [goal], so that [benefit]"))
	})

	It("uses the plain grounded prompt otherwise", func() {
		prompt := service.BuildPrompt("Summarize the release", []model.ScoredDocument{scored("1", "Release", "v2 ships in May", 0.5)}, 1000)
		Expect(prompt).NotTo(ContainSubstring("Story Title:"))
		Expect(prompt).To(ContainSubstring("Content: v2 ships in May"))
	})

	It("drops the least similar documents first when over budget", func() {
		hits := []model.ScoredDocument{
			scored("a", "First", strings.Repeat("a", 60), 0.9),
			scored("b", "Second", strings.Repeat("b", 60), 0.8),
			scored("c", "Third", strings.Repeat("c", 60), 0.1),
		}

		prompt := service.BuildPrompt("question", hits, 150)
		Expect(prompt).To(ContainSubstring("Title: First"))
		Expect(prompt).To(ContainSubstring("Document 2:"))
		Expect(prompt).NotTo(ContainSubstring("Title: Third"))
	})

	DescribeTable("detects story requests",
		func(message string, want bool) {
			Expect(service.AsksForStories(message)).To(Equal(want))
		},
		Entry("user stories", "Generate User Stories for login", true),
		Entry("single story", "draft a story about search", true),
		Entry("unrelated", "what is our SLA?", false),
	)
})
