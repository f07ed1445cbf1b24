package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/common/keylock"
	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/extract"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/store"
)

const twoEpics = `---EPIC---
Title: Account security
Description: Harden sign in.
User Stories:
1. As a user, I want two-factor login, so that my account is safer
Description: Support TOTP apps.
2. As a user, I want to reset my password, so that I can regain access
Description: Email a one-time link.
---END EPIC---
---EPIC---
Title: Billing
Description: Let customers pay.
User Stories:
1. As a customer, I want to pay by card, so that checkout is quick
---END EPIC---`

var _ = Describe("EpicService", func() {
	var (
		ctx       context.Context
		stories   *store.MemoryStoryStore
		tracker   *mockTracker
		generator *mockGenerator
		svc       service.EpicService
		nextID    int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		nextID = 0
		stories = store.NewMemoryStoryStore()
		tracker = &mockTracker{}
		generator = &mockGenerator{generateFn: func(context.Context, llm.Prompt) (*llm.Generation, error) {
			return &llm.Generation{Text: twoEpics}, nil
		}}

		retrieval := service.NewRetrievalService(&mockIndex{}, generatorsOf(generator), service.RetrievalConfig{GenerationTimeout: time.Second})
		storySvc := service.NewStoryService(stories, tracker, keylock.NewMap(), nil, time.Second)
		svc = service.NewEpicService(retrieval, extract.New(func() int64 {
			nextID++
			return nextID
		}), storySvc)
	})

	It("saves each epic and its stories as linked drafts without publishing", func() {
		result, err := svc.Generate(ctx, service.EpicRequest{ProjectKey: "PRJ", Prompt: "plan the next release", NumEpics: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Failed).To(BeEmpty())
		Expect(result.Provider).To(Equal(llm.ProviderOpenAI))
		Expect(result.Epics).To(HaveLen(2))

		security := result.Epics[0]
		Expect(security.Epic.Title).To(Equal("Account security"))
		Expect(security.Epic.Source).To(Equal(model.StorySourceEpic))
		Expect(security.Epic.EpicID).To(BeNil())
		Expect(security.Stories).To(HaveLen(2))
		for _, story := range security.Stories {
			Expect(story.Status).To(Equal(model.StoryStatusDraft))
			Expect(*story.EpicID).To(Equal(security.Epic.ID))
		}
		Expect(result.Epics[1].Stories).To(HaveLen(1))

		saved, err := stories.List(ctx, "PRJ")
		Expect(err).NotTo(HaveOccurred())
		Expect(saved).To(HaveLen(5))
		Expect(tracker.createCalls.Load()).To(BeZero())

		Expect(generator.lastPrompt.User).To(ContainSubstring("generate 2 epic(s)"))
		Expect(generator.lastPrompt.User).To(ContainSubstring(extract.EpicStart))
		Expect(generator.lastPrompt.User).To(HaveSuffix("User: plan the next release"))
	})

	It("reports the stories of an epic that could not be saved", func() {
		Expect(stories.Create(ctx, &model.Story{ID: 1, ProjectKey: "PRJ", Title: "taken"})).To(Succeed())

		result, err := svc.Generate(ctx, service.EpicRequest{ProjectKey: "PRJ", Prompt: "plan"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Epics).To(HaveLen(1))
		Expect(result.Epics[0].Epic.Title).To(Equal("Billing"))
		Expect(result.Failed).To(HaveLen(3))
		Expect(result.Failed[0].Title).To(Equal("Account security"))
		Expect(result.Failed[1].Reason).To(Equal("epic could not be saved"))
	})

	It("returns the raw answer when it holds no epics", func() {
		generator.generateFn = func(context.Context, llm.Prompt) (*llm.Generation, error) {
			return &llm.Generation{Text: "I need more context."}, nil
		}

		result, err := svc.Generate(ctx, service.EpicRequest{ProjectKey: "PRJ", Prompt: "plan"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Response).To(Equal("I need more context."))
		Expect(result.Epics).To(BeEmpty())
	})

	DescribeTable("validates the request before generating",
		func(req service.EpicRequest) {
			_, err := svc.Generate(ctx, req)
			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
			Expect(generator.lastPrompt.User).To(BeEmpty())
		},
		Entry("no prompt", service.EpicRequest{ProjectKey: "PRJ"}),
		Entry("too many epics", service.EpicRequest{ProjectKey: "PRJ", Prompt: "plan", NumEpics: 6}),
		Entry("negative count", service.EpicRequest{ProjectKey: "PRJ", Prompt: "plan", NumEpics: -1}),
		Entry("no project", service.EpicRequest{Prompt: "plan"}),
	)
})
