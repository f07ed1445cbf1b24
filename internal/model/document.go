package model

import "time"

type SourceType string

const (
	SourceTypeJiraIssue      SourceType = "jira_issue"
	SourceTypeConfluencePage SourceType = "confluence_page"
	SourceTypeImage          SourceType = "image"
	SourceTypeBRDSection     SourceType = "brd_section"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceTypeJiraIssue, SourceTypeConfluencePage, SourceTypeImage, SourceTypeBRDSection:
		return true
	}
	return false
}

// Document is one ingested, embedded unit of project context.
// ID is derived from ProjectKey, SourceType and SourceID (see id.Document).
type Document struct {
	ID         string            `json:"id"`
	ProjectKey string            `json:"project_key"`
	SourceType SourceType        `json:"source_type"`
	SourceID   string            `json:"source_id"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// Title is the best human label for the document.
func (d Document) Title() string {
	for _, key := range []string{"title", "summary", "filename", "key"} {
		if v := d.Metadata[key]; v != "" {
			return v
		}
	}
	return d.SourceID
}

// ScoredDocument is a query hit. Similarity is cosine similarity in [-1, 1].
type ScoredDocument struct {
	Document
	Similarity float64 `json:"similarity"`
}
