package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/http/handler"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

var _ = Describe("EpicHandler", func() {
	var (
		router *gin.Engine
		svc    *mockEpicService
	)

	post := func(body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/generate_epics", bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		router = gin.New()
		svc = &mockEpicService{}
		router.POST("/generate_epics", handler.NewEpicHandler(svc).Generate)
	})

	It("returns the drafted epics with their linked stories", func() {
		epicID := int64(9007199254740993)
		svc.generateFn = func(_ context.Context, req service.EpicRequest) (*service.EpicResult, error) {
			Expect(req).To(Equal(service.EpicRequest{ProjectKey: "ACME", Prompt: "plan billing", NumEpics: 2, Provider: "anthropic"}))
			return &service.EpicResult{
				Provider: "anthropic",
				Epics: []service.EpicDraft{{
					Epic:    model.Story{ID: epicID, Title: "Billing", Source: model.StorySourceEpic},
					Stories: []model.Story{{ID: 2, Title: "Pay by card", EpicID: &epicID}},
				}},
				Failed: []service.StoryFailure{{Title: "Refunds", Reason: "story 3 already exists"}},
			}, nil
		}

		w := post(map[string]any{"project_key": "ACME", "prompt": "plan billing", "num_epics": 2, "provider": "anthropic"})

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp struct {
			Message  string `json:"message"`
			Provider string `json:"provider"`
			Epics    []struct {
				Epic    map[string]any   `json:"epic"`
				Stories []map[string]any `json:"stories"`
			} `json:"epics"`
			Failed []map[string]any `json:"failed"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Message).To(Equal("Generated 1 draft epics with 1 stories"))
		Expect(resp.Provider).To(Equal("anthropic"))
		Expect(resp.Epics).To(HaveLen(1))
		Expect(resp.Epics[0].Epic["id"]).To(Equal("9007199254740993"))
		Expect(resp.Epics[0].Epic["source"]).To(Equal("epic"))
		Expect(resp.Epics[0].Stories[0]["epic_id"]).To(Equal("9007199254740993"))
		Expect(resp.Failed).To(HaveLen(1))
	})

	DescribeTable("rejects malformed requests",
		func(body map[string]any) {
			Expect(post(body).Code).To(Equal(http.StatusBadRequest))
		},
		Entry("no prompt", map[string]any{"project_key": "ACME"}),
		Entry("no project", map[string]any{"prompt": "plan"}),
		Entry("too many epics", map[string]any{"project_key": "ACME", "prompt": "plan", "num_epics": 6}),
		Entry("unknown provider", map[string]any{"project_key": "ACME", "prompt": "plan", "provider": "mistral"}),
	)

	It("maps a missing language model to 503", func() {
		svc.generateFn = func(context.Context, service.EpicRequest) (*service.EpicResult, error) {
			return nil, domain.NotConfigured("llm")
		}

		w := post(map[string]any{"project_key": "ACME", "prompt": "plan"})

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
