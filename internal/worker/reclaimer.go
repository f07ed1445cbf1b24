package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// RedisReclaimer claims sync jobs left pending by a worker that died between
// XREADGROUP and XACK, and hands them back to the processor.
type RedisReclaimer struct {
	client    redis.Cmdable
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client redis.Cmdable, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "scribe.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if _, err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// ReclaimOnce runs one reclaim cycle and returns how many jobs it handed to
// the processor.
func (r *RedisReclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}

	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "found stale sync jobs", "count", len(pending))

	processed := 0
	for _, p := range pending {
		ok, err := r.reclaimMessage(ctx, p)
		if err != nil {
			slog.ErrorContext(ctx, "failed to reclaim message",
				"error", err,
				"message_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
			continue
		}
		if ok {
			processed++
		}
	}
	return processed, nil
}

func (r *RedisReclaimer) reclaimMessage(ctx context.Context, pending redis.XPendingExt) (bool, error) {
	msgID := pending.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &msgID})

	messages, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("xclaim: %w", err)
	}

	if len(messages) == 0 {
		slog.DebugContext(ctx, "message already reclaimed by another worker")
		return false, nil
	}

	parsed, err := queue.ParseMessage(messages[0])
	if err != nil {
		slog.ErrorContext(ctx, "unparseable stale message, acknowledging to prevent loop", "error", err)
		_ = r.consumer.Ack(ctx, queue.Message{ID: messages[0].ID, Raw: messages[0]})
		return false, nil
	}

	slog.InfoContext(ctx, "reclaimed stale sync job",
		"job_id", parsed.Job.JobID,
		"original_consumer", pending.Consumer,
		"retry_count", pending.RetryCount)

	// The processor settles the message itself; its error is already logged.
	_ = r.processor(ctx, parsed)
	return true, nil
}
