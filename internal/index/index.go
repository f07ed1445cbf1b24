// Package index is the per-project embedding index: documents are embedded
// once on write and searched by cosine similarity within one project.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/keylock"
	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/store"
)

type Index struct {
	embedder llm.Embedder
	docs     store.DocumentStore
	locks    keylock.Locker
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New returns an Index. A nil locks falls back to an in-process keylock.Map.
func New(embedder llm.Embedder, docs store.DocumentStore, locks keylock.Locker, m *metrics.Metrics) *Index {
	if locks == nil {
		locks = keylock.NewMap()
	}
	return &Index{
		embedder: embedder,
		docs:     docs,
		locks:    locks,
		metrics:  m,
		now:      time.Now,
	}
}

// Dimensions is the vector size every stored document has.
func (ix *Index) Dimensions() int {
	if ix.embedder == nil {
		return 0
	}
	return ix.embedder.Dimensions()
}

// Upsert stamps doc's stable ID, embeds its text when no embedding is set and
// replaces any earlier version of the same source.
func (ix *Index) Upsert(ctx context.Context, doc *model.Document) error {
	if err := ix.prepare(doc); err != nil {
		return err
	}
	if doc.Embedding == nil {
		vectors, err := ix.embed(ctx, []string{doc.Text})
		if err != nil {
			return err
		}
		doc.Embedding = vectors[0]
	}
	return ix.write(ctx, doc)
}

// UpsertBatch embeds all documents lacking a vector in one call and writes
// them one by one. Documents that fail validation or the write are reported
// as failures and do not stop the rest. An error is returned only when the
// embedding call itself fails, since then nothing can be written.
func (ix *Index) UpsertBatch(ctx context.Context, docs []*model.Document) ([]string, []model.SyncFailure, error) {
	var (
		failures []model.SyncFailure
		valid    []*model.Document
		pending  []*model.Document
		texts    []string
	)

	for _, doc := range docs {
		if err := ix.prepare(doc); err != nil {
			failures = append(failures, model.SyncFailure{SourceID: doc.SourceID, Reason: reason(err)})
			continue
		}
		valid = append(valid, doc)
		if doc.Embedding == nil {
			pending = append(pending, doc)
			texts = append(texts, doc.Text)
		}
	}

	if len(texts) > 0 {
		vectors, err := ix.embed(ctx, texts)
		if err != nil {
			return nil, failures, err
		}
		for i, doc := range pending {
			doc.Embedding = vectors[i]
		}
	}

	ids := make([]string, 0, len(valid))
	for _, doc := range valid {
		if err := ix.write(ctx, doc); err != nil {
			slog.WarnContext(ctx, "document upsert failed",
				"source_id", doc.SourceID,
				"source_type", doc.SourceType,
				"error", err)
			failures = append(failures, model.SyncFailure{SourceID: doc.SourceID, Reason: reason(err)})
			continue
		}
		ids = append(ids, doc.ID)
	}

	return ids, failures, nil
}

// Query embeds text and returns the k most similar documents of projectKey.
// An empty or unknown project yields no hits. Embedding failures are
// transient errors, never an empty result.
func (ix *Index) Query(ctx context.Context, projectKey, text string, k int) ([]model.ScoredDocument, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validation("query text is required")
	}
	if projectKey == "" || k <= 0 {
		return []model.ScoredDocument{}, nil
	}

	n, err := ix.docs.Count(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	if n == 0 {
		ix.metrics.ObserveQuery(0)
		return []model.ScoredDocument{}, nil
	}

	vectors, err := ix.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	hits, err := ix.docs.Search(ctx, projectKey, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	ix.metrics.ObserveQuery(len(hits))

	slog.DebugContext(ctx, "index query",
		"project_key", projectKey,
		"k", k,
		"hits", len(hits))

	return hits, nil
}

func (ix *Index) prepare(doc *model.Document) error {
	switch {
	case doc.ProjectKey == "":
		return domain.Validation("project_key is required")
	case !doc.SourceType.Valid():
		return domain.Validation(fmt.Sprintf("unknown source type %q", doc.SourceType))
	case doc.SourceID == "":
		return domain.Validation("source_id is required")
	case strings.TrimSpace(doc.Text) == "":
		return domain.Validation("document text is empty")
	}

	doc.ID = id.Document(doc.ProjectKey, string(doc.SourceType), doc.SourceID)
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = ix.now().UTC()
	}
	if doc.Embedding != nil && len(doc.Embedding) != ix.Dimensions() {
		return ix.dimensionError(len(doc.Embedding))
	}
	return nil
}

func (ix *Index) write(ctx context.Context, doc *model.Document) error {
	unlock, err := ix.locks.Lock(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("locking document %s: %w", doc.SourceID, err)
	}
	defer unlock()

	if err := ix.docs.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.SourceID, err)
	}
	return nil
}

func (ix *Index) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if ix.embedder == nil {
		return nil, domain.NotConfigured("embedding")
	}

	start := time.Now()
	vectors, err := ix.embedder.Embed(ctx, texts)
	ix.metrics.ObserveExternal("embedding", "embed", err, time.Since(start))
	if err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			return nil, err
		}
		return nil, domain.Transient("embed", "embedding service unavailable, try again", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.Transient("embed", "embedding service returned an incomplete batch",
			fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
	}
	for _, v := range vectors {
		if len(v) != ix.embedder.Dimensions() {
			return nil, ix.dimensionError(len(v))
		}
	}
	return vectors, nil
}

func (ix *Index) dimensionError(got int) error {
	return domain.Validation(fmt.Sprintf("embedding has %d dimensions, index uses %d", got, ix.Dimensions()))
}

func reason(err error) string {
	if msg := domain.MessageOf(err); msg != "" {
		return msg
	}
	return err.Error()
}
