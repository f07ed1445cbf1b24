package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/http/dto"
	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/service"
)

const (
	defaultIssueSyncMax = 50
	defaultPageSyncMax  = 10
)

type SyncHandler struct {
	syncService service.SyncService
}

func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

func (h *SyncHandler) SyncJira(c *gin.Context) {
	var req dto.SyncJiraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultIssueSyncMax
	}

	h.run(c, req.Async, service.SyncRequest{
		ProjectKey: req.ProjectKey,
		SourceType: model.SourceTypeJiraIssue,
		Source:     ingest.SourceConfig{MaxResults: req.MaxResults},
	})
}

func (h *SyncHandler) SyncConfluence(c *gin.Context) {
	var req dto.SyncConfluenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultPageSyncMax
	}

	h.run(c, req.Async, service.SyncRequest{
		ProjectKey: req.ProjectKey,
		SourceType: model.SourceTypeConfluencePage,
		Source: ingest.SourceConfig{
			MaxResults:  req.MaxResults,
			SpaceKey:    req.SpaceKey,
			SearchQuery: req.SearchQuery,
		},
	})
}

func (h *SyncHandler) run(c *gin.Context, async bool, req service.SyncRequest) {
	ctx := c.Request.Context()

	if async {
		jobID, err := h.syncService.Enqueue(ctx, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.SyncJobResponse{
			Message: "Sync scheduled",
			JobID:   jobID,
		})
		return
	}

	result, err := h.syncService.Sync(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToSyncResponse(result))
}

func (h *SyncHandler) UploadImage(c *gin.Context) {
	h.upload(c, model.SourceTypeImage)
}

func (h *SyncHandler) UploadBRD(c *gin.Context) {
	h.upload(c, model.SourceTypeBRDSection)
}

func (h *SyncHandler) upload(c *gin.Context, sourceType model.SourceType) {
	ctx := c.Request.Context()

	projectKey := c.PostForm("project_key")
	if projectKey == "" {
		respondError(c, domain.Validation("project_key is required"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, domain.Validation("no file provided"))
		return
	}

	sectionSize := 0
	if raw := c.PostForm("section_size"); raw != "" {
		sectionSize, err = strconv.Atoi(raw)
		if err != nil || sectionSize < 0 {
			respondError(c, domain.Validation(fmt.Sprintf("section_size must be a positive integer, got %q", raw)))
			return
		}
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	result, err := h.syncService.Sync(ctx, service.SyncRequest{
		ProjectKey: projectKey,
		SourceType: sourceType,
		Source: ingest.SourceConfig{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
			SectionSize: sectionSize,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSyncResponse(result))
}
