package dto

import "basegraph.app/scribe/internal/model"

type SyncJiraRequest struct {
	ProjectKey string `json:"project_key" binding:"required,max=255"`
	MaxResults int    `json:"max_results" binding:"omitempty,min=1,max=1000"`
	Async      bool   `json:"async"`
}

type SyncConfluenceRequest struct {
	SpaceKey    string `json:"space_key" binding:"required,max=255"`
	SearchQuery string `json:"search_query" binding:"max=1000"`
	MaxResults  int    `json:"max_results" binding:"omitempty,min=1,max=1000"`
	ProjectKey  string `json:"project_key" binding:"max=255"`
	Async       bool   `json:"async"`
}

type SyncResponse struct {
	Message     string              `json:"message"`
	ProjectKey  string              `json:"project_key"`
	SourceType  model.SourceType    `json:"source_type"`
	Succeeded   int                 `json:"succeeded"`
	Failed      []model.SyncFailure `json:"failed"`
	DocumentIDs []string            `json:"document_ids,omitempty"`
}

func ToSyncResponse(r *model.SyncResult) SyncResponse {
	return SyncResponse{
		Message:     r.Message(),
		ProjectKey:  r.ProjectKey,
		SourceType:  r.SourceType,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		DocumentIDs: r.DocumentIDs,
	}
}

type SyncJobResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}
