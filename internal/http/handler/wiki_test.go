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
)

var _ = Describe("WikiHandler and TrackerHandler", func() {
	var (
		router  *gin.Engine
		wiki    *mockWikiPageService
		tracker *mockTrackerService
	)

	BeforeEach(func() {
		router = gin.New()
		wiki = &mockWikiPageService{}
		tracker = &mockTrackerService{}
		router.POST("/create_confluence_page", handler.NewWikiHandler(wiki).CreatePage)
		th := handler.NewTrackerHandler(tracker)
		router.GET("/jira/projects", th.ListProjects)
		router.GET("/jira/test-connection", th.TestConnection)
	})

	createPage := func(body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/create_confluence_page", bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	It("creates a page", func() {
		var got model.NewWikiPage
		wiki.createFn = func(_ context.Context, page model.NewWikiPage) (*model.WikiPage, error) {
			got = page
			return &model.WikiPage{ID: "99", Title: page.Title, SpaceKey: page.SpaceKey, URL: "https://wiki/pages/99"}, nil
		}

		w := createPage(map[string]string{"space_key": "ENG", "title": "Notes", "content": "<p>x</p>", "parent_id": "7"})

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(got).To(Equal(model.NewWikiPage{SpaceKey: "ENG", Title: "Notes", Body: "<p>x</p>", ParentID: "7"}))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["page_id"]).To(Equal("99"))
		Expect(resp["url"]).To(Equal("https://wiki/pages/99"))
	})

	It("requires content", func() {
		w := createPage(map[string]string{"space_key": "ENG", "title": "Notes"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("reports an unconfigured wiki as 503", func() {
		wiki.createFn = func(context.Context, model.NewWikiPage) (*model.WikiPage, error) {
			return nil, domain.NotConfigured("confluence")
		}

		w := createPage(map[string]string{"space_key": "ENG", "title": "Notes", "content": "x"})

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("lists tracker projects", func() {
		tracker.listProjectsFn = func(context.Context) ([]model.TrackerProject, error) {
			return []model.TrackerProject{{Key: "ACME", Name: "Acme"}}, nil
		}

		w := get("/jira/projects")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`[{"key":"ACME","name":"Acme"}]`))
	})

	It("always answers the connection check with 200", func() {
		tracker.testConnectionFn = func(context.Context) model.ConnectionStatus {
			return model.ConnectionStatus{Status: model.ConnectionError, Message: "401 Unauthorized", URL: "https://acme.atlassian.net"}
		}

		w := get("/jira/test-connection")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"error","message":"401 Unauthorized","url":"https://acme.atlassian.net"}`))
	})
})
