package wiki

import (
	"context"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
)

// Wiki reads pages for ingestion and writes documentation pages back.
// Story publishing never goes through it.
type Wiki interface {
	// FetchPages returns current pages of spaceKey. A non-empty query
	// switches to full-text search, and an empty spaceKey then searches all spaces.
	FetchPages(ctx context.Context, spaceKey, query string, maxResults int) ([]model.WikiPage, error)
	CreatePage(ctx context.Context, page model.NewWikiPage) (*model.WikiPage, error)
	Configured() bool
}

type unconfigured struct{}

// NewUnconfigured returns a Wiki that fails every call with a configuration error.
func NewUnconfigured() Wiki {
	return unconfigured{}
}

func (unconfigured) FetchPages(context.Context, string, string, int) ([]model.WikiPage, error) {
	return nil, notConfigured()
}

func (unconfigured) CreatePage(context.Context, model.NewWikiPage) (*model.WikiPage, error) {
	return nil, notConfigured()
}

func (unconfigured) Configured() bool {
	return false
}

func notConfigured() error {
	err := domain.NotConfigured("confluence")
	err.Message = "Confluence integration is not configured. Set CONFLUENCE_URL, CONFLUENCE_USERNAME, and CONFLUENCE_API_TOKEN."
	return err
}
