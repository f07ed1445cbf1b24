package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, job SyncJob) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, job SyncJob) error {
	if job.Attempt <= 0 {
		job.Attempt = 1
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: jobValues(job),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue sync job: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued sync job",
		"job_id", job.JobID,
		"task_type", job.TaskType,
		"project_key", job.ProjectKey,
		"attempt", job.Attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
