package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service/wiki"
)

type WikiPageService interface {
	// Create writes a documentation page. It is independent of story publishing.
	Create(ctx context.Context, page model.NewWikiPage) (*model.WikiPage, error)
}

type wikiPageService struct {
	wiki    wiki.Wiki
	timeout time.Duration
}

func NewWikiPageService(w wiki.Wiki, timeout time.Duration) WikiPageService {
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &wikiPageService{wiki: w, timeout: timeout}
}

func (s *wikiPageService) Create(ctx context.Context, page model.NewWikiPage) (*model.WikiPage, error) {
	page.SpaceKey = strings.TrimSpace(page.SpaceKey)
	page.Title = strings.TrimSpace(page.Title)
	switch {
	case page.SpaceKey == "":
		return nil, domain.Validation("space_key is required")
	case page.Title == "":
		return nil, domain.Validation("title is required")
	case strings.TrimSpace(page.Body) == "":
		return nil, domain.Validation("content is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.wiki.CreatePage(ctx, page)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "wiki page created",
		"space_key", created.SpaceKey,
		"page_id", created.ID,
		"title", created.Title)
	return created, nil
}
