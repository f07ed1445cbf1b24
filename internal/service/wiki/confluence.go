package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/common/ratelimit"
	"basegraph.app/scribe/core/config"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/external"
)

const (
	maxResponseSize = 32 << 20
	contentExpand   = "body.storage,version,space"
)

type confluence struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
}

// NewConfluence returns a client for the Confluence REST API at cfg.URL
// (for Cloud, "https://<site>.atlassian.net/wiki").
func NewConfluence(cfg config.ConfluenceConfig, timeout time.Duration, limiter *ratelimit.Limiter, m *metrics.Metrics) Wiki {
	if !cfg.Enabled() {
		return NewUnconfigured()
	}
	return &confluence{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		username:   cfg.Username,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		metrics:    m,
	}
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space *struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

type contentListResponse struct {
	Results []contentResponse `json:"results"`
}

type storageBody struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type createContentRequest struct {
	Type      string              `json:"type"`
	Title     string              `json:"title"`
	Space     map[string]string   `json:"space"`
	Body      map[string]any      `json:"body"`
	Ancestors []map[string]string `json:"ancestors,omitempty"`
}

func (c *confluence) Configured() bool {
	return true
}

func (c *confluence) FetchPages(ctx context.Context, spaceKey, query string, maxResults int) ([]model.WikiPage, error) {
	params := url.Values{}
	params.Set("expand", contentExpand)
	params.Set("limit", strconv.Itoa(maxResults))

	path := "/rest/api/content"
	op := "fetch_pages"
	if query != "" {
		path = "/rest/api/content/search"
		op = "search_pages"
		params.Set("cql", buildCQL(spaceKey, query))
	} else {
		params.Set("spaceKey", spaceKey)
		params.Set("type", "page")
		params.Set("status", "current")
	}

	var list contentListResponse
	if err := c.do(ctx, op, http.MethodGet, path+"?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}

	pages := make([]model.WikiPage, 0, len(list.Results))
	for _, r := range list.Results {
		pages = append(pages, c.toPage(r, spaceKey))
	}

	slog.DebugContext(ctx, "confluence pages fetched",
		"space_key", spaceKey,
		"query", query,
		"count", len(pages))

	return pages, nil
}

func (c *confluence) CreatePage(ctx context.Context, page model.NewWikiPage) (*model.WikiPage, error) {
	req := createContentRequest{
		Type:  "page",
		Title: page.Title,
		Space: map[string]string{"key": page.SpaceKey},
		Body: map[string]any{
			"storage": storageBody{Value: page.Body, Representation: "storage"},
		},
	}
	if page.ParentID != "" {
		req.Ancestors = []map[string]string{{"id": page.ParentID}}
	}

	var created contentResponse
	if err := c.do(ctx, "create_page", http.MethodPost, "/rest/api/content", req, &created); err != nil {
		return nil, err
	}

	out := c.toPage(created, page.SpaceKey)
	return &out, nil
}

func (c *confluence) do(ctx context.Context, op, method, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding confluence request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating confluence request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveExternal("confluence", op, err, time.Since(start))
		return external.Classify(ctx, c.limiter, external.Call{Service: "confluence", Op: op, Err: err})
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("confluence returned %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}
	c.metrics.ObserveExternal("confluence", op, err, time.Since(start))
	if err != nil {
		slog.WarnContext(ctx, "confluence request failed",
			"operation", op,
			"status", resp.StatusCode,
			"error", err)
		return external.Classify(ctx, c.limiter, external.Call{
			Service: "confluence",
			Op:      op,
			Status:  resp.StatusCode,
			Header:  resp.Header,
			Err:     err,
		})
	}

	if err := json.Unmarshal(payload, result); err != nil {
		return fmt.Errorf("decoding confluence response: %w", err)
	}
	return nil
}

func (c *confluence) toPage(r contentResponse, spaceKey string) model.WikiPage {
	page := model.WikiPage{
		ID:       r.ID,
		Title:    r.Title,
		SpaceKey: spaceKey,
		Version:  r.Version.Number,
		BodyHTML: r.Body.Storage.Value,
	}
	if r.Space != nil && r.Space.Key != "" {
		page.SpaceKey = r.Space.Key
	}
	if when, err := time.Parse(time.RFC3339, r.Version.When); err == nil {
		page.LastModified = &when
	}
	if r.Links.WebUI != "" {
		page.URL = c.baseURL + r.Links.WebUI
	}
	return page
}

// buildCQL restricts a full-text search to pages, and to spaceKey when set.
func buildCQL(spaceKey, query string) string {
	cql := fmt.Sprintf(`type=page AND text ~ "%s"`, escapeCQL(query))
	if spaceKey != "" {
		cql += fmt.Sprintf(` AND space="%s"`, escapeCQL(spaceKey))
	}
	return cql
}

func escapeCQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
