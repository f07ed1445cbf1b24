package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/keylock"
	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/common/metrics"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/ingest"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
)

// embedBatchSize bounds how many documents share one embedding request.
const embedBatchSize = 32

// DocumentIndex is the part of the embedding index the services use.
type DocumentIndex interface {
	UpsertBatch(ctx context.Context, docs []*model.Document) ([]string, []model.SyncFailure, error)
	Query(ctx context.Context, projectKey, text string, k int) ([]model.ScoredDocument, error)
}

type SyncRequest struct {
	ProjectKey string
	SourceType model.SourceType
	Source     ingest.SourceConfig
}

type SyncService interface {
	// Sync fetches one source and indexes it. Item failures are reported in
	// the result; an error means nothing could be ingested.
	Sync(ctx context.Context, req SyncRequest) (*model.SyncResult, error)
	// Enqueue schedules a tracker or wiki sync on the job stream and returns the job id.
	Enqueue(ctx context.Context, req SyncRequest) (string, error)
}

type syncService struct {
	index       DocumentIndex
	sources     ingest.Registry
	locks       keylock.Locker
	producer    queue.Producer
	metrics     *metrics.Metrics
	concurrency int
}

func NewSyncService(index DocumentIndex, sources ingest.Registry, locks keylock.Locker, producer queue.Producer, m *metrics.Metrics, concurrency int) SyncService {
	if locks == nil {
		locks = keylock.NewMap()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &syncService{
		index:       index,
		sources:     sources,
		locks:       locks,
		producer:    producer,
		metrics:     m,
		concurrency: concurrency,
	}
}

func (s *syncService) Sync(ctx context.Context, req SyncRequest) (*model.SyncResult, error) {
	req = withDefaultProject(req)
	if req.ProjectKey == "" {
		return nil, domain.Validation("project_key is required")
	}

	adapter, ok := s.sources[req.SourceType]
	if !ok {
		return nil, domain.Validation(fmt.Sprintf("unsupported source type %q", req.SourceType))
	}

	sourceType := string(req.SourceType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectKey: &req.ProjectKey,
		SourceType: &sourceType,
		Component:  "scribe.service.sync",
	})

	// One sync per project and source at a time; other projects are unaffected.
	unlock, err := s.locks.Lock(ctx, "sync:"+req.ProjectKey+":"+sourceType)
	if err != nil {
		return nil, fmt.Errorf("waiting for running sync: %w", err)
	}
	defer unlock()

	start := time.Now()
	batch, err := adapter.FetchAndNormalize(ctx, req.ProjectKey, req.Source)
	if err != nil {
		slog.WarnContext(ctx, "source fetch failed", "error", err)
		return nil, err
	}

	ids, failures, err := s.indexAll(ctx, batch)
	failures = append(batch.Failures, failures...)

	result := &model.SyncResult{
		ProjectKey:  req.ProjectKey,
		SourceType:  req.SourceType,
		Succeeded:   len(ids),
		Failed:      failures,
		DocumentIDs: ids,
	}
	if result.Failed == nil {
		result.Failed = []model.SyncFailure{}
	}
	s.metrics.ObserveSync(sourceType, result.Succeeded, len(result.Failed), time.Since(start))

	// A batch that embedded nothing because the embedding service is down is
	// an outage, not a partial result.
	if err != nil && result.Succeeded == 0 {
		return nil, err
	}

	slog.InfoContext(ctx, "sync completed",
		"succeeded", result.Succeeded,
		"failed", len(result.Failed),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// indexAll writes the batch in embedding-sized groups, several at a time.
// Documents that did not make it into the index are handed to batch.Discard.
func (s *syncService) indexAll(ctx context.Context, batch *ingest.Batch) ([]string, []model.SyncFailure, error) {
	var (
		mu       sync.Mutex
		ids      []string
		failures []model.SyncFailure
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(batch.Documents); start += embedBatchSize {
		group := batch.Documents[start:min(start+embedBatchSize, len(batch.Documents))]
		g.Go(func() error {
			written, failed, err := s.index.UpsertBatch(gctx, group)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				reason := domain.MessageOf(err)
				if reason == "" {
					reason = err.Error()
				}
				// Documents the index already rejected keep their own reason.
				reported := make(map[string]bool, len(failed))
				for _, f := range failed {
					reported[f.SourceID] = true
				}
				for _, doc := range group {
					if reported[doc.SourceID] {
						continue
					}
					failed = append(failed, model.SyncFailure{SourceID: doc.SourceID, Reason: reason})
				}
				written = nil
			}
			ids = append(ids, written...)
			failures = append(failures, failed...)
			return nil
		})
	}
	_ = g.Wait()

	if batch.Discard != nil {
		indexed := make(map[string]bool, len(ids))
		for _, docID := range ids {
			indexed[docID] = true
		}
		for _, doc := range batch.Documents {
			if doc.ID == "" || !indexed[doc.ID] {
				batch.Discard(ctx, doc)
			}
		}
	}

	return ids, failures, firstErr
}

func (s *syncService) Enqueue(ctx context.Context, req SyncRequest) (string, error) {
	if s.producer == nil {
		return "", domain.NotConfigured("job queue")
	}
	req = withDefaultProject(req)
	if req.ProjectKey == "" {
		return "", domain.Validation("project_key is required")
	}
	taskType, ok := queue.TaskTypeFor(req.SourceType)
	if !ok {
		return "", domain.Validation(fmt.Sprintf("source type %q cannot be synced in the background", req.SourceType))
	}
	if _, ok := s.sources[req.SourceType]; !ok {
		return "", domain.Validation(fmt.Sprintf("unsupported source type %q", req.SourceType))
	}

	job := queue.SyncJob{
		JobID:       id.Upload(),
		TaskType:    taskType,
		ProjectKey:  req.ProjectKey,
		MaxResults:  req.Source.MaxResults,
		SpaceKey:    req.Source.SpaceKey,
		SearchQuery: req.Source.SearchQuery,
		TraceID:     logger.TraceID(ctx),
		Attempt:     1,
	}
	if err := s.producer.Enqueue(ctx, job); err != nil {
		return "", domain.Transient("enqueue", "could not schedule the sync, try again", err)
	}
	return job.JobID, nil
}

// withDefaultProject files wiki pages under the space key when no project is given.
func withDefaultProject(req SyncRequest) SyncRequest {
	if req.ProjectKey == "" && req.SourceType == model.SourceTypeConfluencePage {
		req.ProjectKey = req.Source.SpaceKey
	}
	return req
}

// JobSyncRequest rebuilds the request a queued job was created from.
func JobSyncRequest(job queue.SyncJob) SyncRequest {
	return SyncRequest{
		ProjectKey: job.ProjectKey,
		SourceType: job.TaskType.SourceType(),
		Source: ingest.SourceConfig{
			MaxResults:  job.MaxResults,
			SpaceKey:    job.SpaceKey,
			SearchQuery: job.SearchQuery,
		},
	}
}

// IsRetryableSync reports whether a failed background sync is worth retrying.
func IsRetryableSync(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}
