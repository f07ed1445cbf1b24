package worker

import (
	"context"

	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Syncer runs one ingestion. service.SyncService satisfies it.
type Syncer interface {
	Sync(ctx context.Context, req service.SyncRequest) (*model.SyncResult, error)
}
