package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/scribe/common/logger"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // Dead letter queue stream for failed jobs
	BatchSize    int64         // Number of messages to read per batch
	Block        time.Duration // How long to block waiting for new messages
	RequeueDelay time.Duration // Delay before retrying a failed job
}

// Message is a SyncJob read from the stream.
type Message struct {
	ID  string
	Job SyncJob
	Raw redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Start from "0" so jobs enqueued before the group existed are not lost.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "scribe.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" reads only new messages; stale pending ones belong to the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse message",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acks msg and appends a copy with the next attempt number.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	job := msg.Job
	job.Attempt++
	values := jobValues(job)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RequeueDelay):
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "sync job requeued for retry",
		"job_id", job.JobID,
		"next_attempt", job.Attempt,
		"reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := jobValues(msg.Job)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "sync job sent to DLQ",
		"job_id", msg.Job.JobID,
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	taskType := TaskType(optionalString(msg.Values, "task_type"))
	if taskType.SourceType() == "" {
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	job := SyncJob{
		JobID:       optionalString(msg.Values, "job_id"),
		TaskType:    taskType,
		ProjectKey:  optionalString(msg.Values, "project_key"),
		SpaceKey:    optionalString(msg.Values, "space_key"),
		SearchQuery: optionalString(msg.Values, "search_query"),
		TraceID:     optionalString(msg.Values, "trace_id"),
	}
	if job.JobID == "" {
		return Message{}, fmt.Errorf("missing job_id")
	}

	var err error
	if job.MaxResults, err = optionalInt(msg.Values, "max_results"); err != nil {
		return Message{}, err
	}
	if job.Attempt, err = optionalInt(msg.Values, "attempt"); err != nil {
		return Message{}, err
	}
	if job.Attempt == 0 {
		job.Attempt = 1
	}

	switch taskType {
	case TaskTypeSyncIssues:
		if job.ProjectKey == "" {
			return Message{}, fmt.Errorf("missing project_key")
		}
	case TaskTypeSyncWiki:
		if job.SpaceKey == "" {
			return Message{}, fmt.Errorf("missing space_key")
		}
	}

	return Message{ID: msg.ID, Job: job, Raw: msg}, nil
}

func optionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func optionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func jobValues(job SyncJob) map[string]any {
	values := map[string]any{
		"job_id":      job.JobID,
		"task_type":   string(job.TaskType),
		"project_key": job.ProjectKey,
		"attempt":     job.Attempt,
	}
	if job.MaxResults > 0 {
		values["max_results"] = job.MaxResults
	}
	if job.SpaceKey != "" {
		values["space_key"] = job.SpaceKey
	}
	if job.SearchQuery != "" {
		values["search_query"] = job.SearchQuery
	}
	if job.TraceID != "" {
		values["trace_id"] = job.TraceID
	}
	return values
}
