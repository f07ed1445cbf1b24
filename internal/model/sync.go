package model

import "fmt"

// SyncFailure names a source item that could not be ingested.
type SyncFailure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// SyncResult summarizes an ingestion batch. A non-empty Failed list with a
// non-zero Succeeded count is a partial failure, not an error.
type SyncResult struct {
	ProjectKey  string        `json:"project_key"`
	SourceType  SourceType    `json:"source_type"`
	Succeeded   int           `json:"succeeded"`
	Failed      []SyncFailure `json:"failed"`
	DocumentIDs []string      `json:"document_ids,omitempty"`
}

func (r SyncResult) Partial() bool {
	return len(r.Failed) > 0 && r.Succeeded > 0
}

// Message is the human readable summary returned to API callers.
func (r SyncResult) Message() string {
	noun := sourceNoun(r.SourceType, r.Succeeded)
	switch {
	case len(r.Failed) == 0:
		return fmt.Sprintf("Successfully synced %d %s for %s", r.Succeeded, noun, r.ProjectKey)
	case r.Succeeded == 0:
		return fmt.Sprintf("Sync failed for %s: none of %d items could be ingested", r.ProjectKey, len(r.Failed))
	default:
		return fmt.Sprintf("Partially synced %s: %d %s ingested, %d failed", r.ProjectKey, r.Succeeded, noun, len(r.Failed))
	}
}

func sourceNoun(t SourceType, n int) string {
	var noun string
	switch t {
	case SourceTypeJiraIssue:
		noun = "issue"
	case SourceTypeConfluencePage:
		noun = "page"
	case SourceTypeImage:
		noun = "image"
	case SourceTypeBRDSection:
		noun = "section"
	default:
		noun = "document"
	}
	if n != 1 {
		noun += "s"
	}
	return noun
}
