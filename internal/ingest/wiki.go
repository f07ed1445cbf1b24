package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/wiki"
)

var excessiveLines = regexp.MustCompile(`\n{3,}`)

type wikiAdapter struct {
	wiki      wiki.Wiki
	converter *md.Converter
}

func NewWikiAdapter(w wiki.Wiki) Adapter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style")
	// Remove only applies to tags without a rule, and img has one.
	converter.AddRules(md.Rule{
		Filter: []string{"img"},
		Replacement: func(string, *goquery.Selection, *md.Options) *string {
			return md.String("")
		},
	})

	return &wikiAdapter{wiki: w, converter: converter}
}

func (a *wikiAdapter) SourceType() model.SourceType {
	return model.SourceTypeConfluencePage
}

func (a *wikiAdapter) FetchAndNormalize(ctx context.Context, projectKey string, cfg SourceConfig) (*Batch, error) {
	if cfg.SpaceKey == "" && cfg.SearchQuery == "" {
		return nil, domain.Validation("space_key is required")
	}
	if projectKey == "" {
		projectKey = cfg.SpaceKey
	}
	if projectKey == "" {
		return nil, domain.Validation("project_key is required when searching all spaces")
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	pages, err := a.wiki.FetchPages(ctx, cfg.SpaceKey, cfg.SearchQuery, maxResults)
	if err != nil {
		return nil, fmt.Errorf("fetching pages: %w", err)
	}

	batch := &Batch{}
	for _, page := range pages {
		if page.ID == "" {
			batch.Failures = append(batch.Failures, model.SyncFailure{SourceID: page.Title, Reason: "page has no id"})
			continue
		}

		content, err := a.toMarkdown(page.BodyHTML)
		if err != nil {
			batch.Failures = append(batch.Failures, model.SyncFailure{
				SourceID: page.ID,
				Reason:   fmt.Sprintf("converting page body: %v", err),
			})
			continue
		}
		if content == "" {
			batch.Failures = append(batch.Failures, model.SyncFailure{SourceID: page.ID, Reason: "page has no content"})
			continue
		}

		batch.Documents = append(batch.Documents, pageDocument(projectKey, page, content))
	}
	return batch, nil
}

// toMarkdown keeps headings, lists and tables so retrieved snippets stay readable.
func (a *wikiAdapter) toMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	out, err := a.converter.ConvertString(html)
	if err != nil {
		return "", err
	}
	out = excessiveLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), nil
}

func pageDocument(projectKey string, page model.WikiPage, content string) *model.Document {
	modified := ""
	if page.LastModified != nil {
		modified = page.LastModified.UTC().Format(time.RFC3339)
	}

	text := fmt.Sprintf("Page ID: %s\nTitle: %s\nVersion: %d\nLast Modified: %s\n\nContent:\n%s",
		page.ID, page.Title, page.Version, modified, content)

	metadata := map[string]string{
		"title":         page.Title,
		"page_id":       page.ID,
		"space_key":     page.SpaceKey,
		"version":       strconv.Itoa(page.Version),
		"last_modified": modified,
	}
	if page.URL != "" {
		metadata["url"] = page.URL
	}

	return &model.Document{
		ProjectKey: projectKey,
		SourceType: model.SourceTypeConfluencePage,
		SourceID:   page.ID,
		Text:       text,
		Metadata:   metadata,
	}
}
