package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
)

type Config struct {
	MaxAttempts  int
	ErrorBackoff time.Duration
}

// Worker drains sync jobs from the stream and runs them through the sync service.
type Worker struct {
	consumer Consumer
	syncer   Syncer
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, syncer Syncer, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:  consumer,
		syncer:    syncer,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "scribe.worker"})
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.HandleMessage(ctx, msg)
	}
	return nil
}

// HandleMessage runs one job and settles it on the stream: ack on success,
// requeue on a retryable failure, dead-letter otherwise. The reclaimer uses
// it for stale messages.
func (w *Worker) HandleMessage(ctx context.Context, msg queue.Message) error {
	msgID := msg.ID
	jobID := msg.Job.JobID
	projectKey := msg.Job.ProjectKey
	sourceType := string(msg.Job.TaskType.SourceType())
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:  &msgID,
		JobID:      &jobID,
		ProjectKey: &projectKey,
		SourceType: &sourceType,
	})

	err := w.processMessageSafe(ctx, msg)
	if err == nil {
		if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
			// Unacked jobs are reclaimed later; a resync is idempotent.
			slog.WarnContext(ctx, "failed to ACK message", "error", ackErr)
		}
		return nil
	}

	slog.ErrorContext(ctx, "sync job failed", "error", err, "attempt", msg.Job.Attempt)
	w.handleFailedMessage(ctx, msg, err)
	return err
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

func (w *Worker) processMessage(ctx context.Context, msg queue.Message) error {
	slog.InfoContext(ctx, "processing sync job",
		"task_type", msg.Job.TaskType,
		"attempt", msg.Job.Attempt,
		"trace_id", msg.Job.TraceID)

	start := time.Now()
	result, err := w.syncer.Sync(ctx, service.JobSyncRequest(msg.Job))
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "sync job completed",
		"succeeded", result.Succeeded,
		"failed", len(result.Failed),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if !service.IsRetryableSync(err) || msg.Job.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "sending job to DLQ",
			"attempts", msg.Job.Attempt,
			"retryable", service.IsRetryableSync(err))
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed job", "attempt", msg.Job.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
