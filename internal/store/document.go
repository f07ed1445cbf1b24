package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/model"
)

type documentStore struct {
	q db.DBTX
}

func newDocumentStore(q db.DBTX) DocumentStore {
	return &documentStore{q: q}
}

const upsertDocument = `
INSERT INTO documents (id, project_key, source_type, source_id, text, embedding, metadata, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    text        = EXCLUDED.text,
    embedding   = EXCLUDED.embedding,
    metadata    = EXCLUDED.metadata,
    ingested_at = EXCLUDED.ingested_at`

func (s *documentStore) Upsert(ctx context.Context, doc *model.Document) error {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := s.q.Exec(ctx, upsertDocument,
		doc.ID,
		doc.ProjectKey,
		string(doc.SourceType),
		doc.SourceID,
		doc.Text,
		pgvector.NewVector(doc.Embedding),
		metadata,
		doc.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

const searchDocuments = `
SELECT id, project_key, source_type, source_id, text, metadata, ingested_at,
       1 - (embedding <=> $2) AS similarity
FROM documents
WHERE project_key = $1
ORDER BY embedding <=> $2, ingested_at DESC
LIMIT $3`

func (s *documentStore) Search(ctx context.Context, projectKey string, embedding []float32, k int) ([]model.ScoredDocument, error) {
	rows, err := s.q.Query(ctx, searchDocuments, projectKey, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var results []model.ScoredDocument
	for rows.Next() {
		var (
			hit        model.ScoredDocument
			sourceType string
		)
		if err := rows.Scan(
			&hit.ID,
			&hit.ProjectKey,
			&sourceType,
			&hit.SourceID,
			&hit.Text,
			&hit.Metadata,
			&hit.IngestedAt,
			&hit.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		hit.SourceType = model.SourceType(sourceType)
		results = append(results, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return results, nil
}

const getDocument = `
SELECT id, project_key, source_type, source_id, text, embedding, metadata, ingested_at
FROM documents
WHERE project_key = $1 AND id = $2`

func (s *documentStore) Get(ctx context.Context, projectKey, id string) (*model.Document, error) {
	var (
		doc        model.Document
		sourceType string
		embedding  pgvector.Vector
	)
	err := s.q.QueryRow(ctx, getDocument, projectKey, id).Scan(
		&doc.ID,
		&doc.ProjectKey,
		&sourceType,
		&doc.SourceID,
		&doc.Text,
		&embedding,
		&doc.Metadata,
		&doc.IngestedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc.SourceType = model.SourceType(sourceType)
	doc.Embedding = embedding.Slice()
	return &doc, nil
}

const listDocuments = `
SELECT id, project_key, source_type, source_id, text, metadata, ingested_at
FROM documents
WHERE project_key = $1 AND source_type = $2
ORDER BY ingested_at, source_id`

func (s *documentStore) List(ctx context.Context, projectKey string, sourceType model.SourceType) ([]model.Document, error) {
	rows, err := s.q.Query(ctx, listDocuments, projectKey, string(sourceType))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var (
			doc model.Document
			st  string
		)
		if err := rows.Scan(&doc.ID, &doc.ProjectKey, &st, &doc.SourceID, &doc.Text, &doc.Metadata, &doc.IngestedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.SourceType = model.SourceType(st)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (s *documentStore) Count(ctx context.Context, projectKey string) (int, error) {
	var n int
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM documents WHERE project_key = $1`, projectKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
