// Package ingest normalizes external content into documents for the index.
// There is one Adapter per source type.
package ingest

import (
	"context"
	"io"

	"basegraph.app/scribe/internal/model"
)

const DefaultMaxUploadBytes = 10 << 20

// SourceConfig carries the per-request options of every adapter; each
// adapter reads only the fields it needs.
type SourceConfig struct {
	// Issue tracker and wiki.
	MaxResults  int
	SpaceKey    string
	SearchQuery string

	// Uploads.
	Filename    string
	ContentType string
	Content     io.Reader
	SectionSize int
}

// Batch is the output of one fetch. Failures are items that were skipped;
// they never abort the batch.
type Batch struct {
	Documents []*model.Document
	Failures  []model.SyncFailure

	// Discard, when set, releases resources held for a document that
	// could not be indexed (e.g. a stored image blob).
	Discard func(ctx context.Context, doc *model.Document)
}

type Adapter interface {
	SourceType() model.SourceType
	FetchAndNormalize(ctx context.Context, projectKey string, cfg SourceConfig) (*Batch, error)
}

// Registry dispatches by source type.
type Registry map[model.SourceType]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.SourceType()] = a
	}
	return r
}
