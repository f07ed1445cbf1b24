package queue

import "basegraph.app/scribe/internal/model"

type TaskType string

const (
	TaskTypeSyncIssues TaskType = "sync_issues"
	TaskTypeSyncWiki   TaskType = "sync_wiki"
)

// TaskTypeFor maps a source type to the task that syncs it. Upload sources
// carry their payload in the request and are never queued.
func TaskTypeFor(sourceType model.SourceType) (TaskType, bool) {
	switch sourceType {
	case model.SourceTypeJiraIssue:
		return TaskTypeSyncIssues, true
	case model.SourceTypeConfluencePage:
		return TaskTypeSyncWiki, true
	}
	return "", false
}

func (t TaskType) SourceType() model.SourceType {
	switch t {
	case TaskTypeSyncIssues:
		return model.SourceTypeJiraIssue
	case TaskTypeSyncWiki:
		return model.SourceTypeConfluencePage
	}
	return ""
}

// SyncJob is a queued request to pull one external source into a project.
type SyncJob struct {
	JobID       string
	TaskType    TaskType
	ProjectKey  string
	MaxResults  int
	SpaceKey    string
	SearchQuery string
	TraceID     string
	Attempt     int
}
