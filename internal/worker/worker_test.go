package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/worker"
)

type mockConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	acked    []string
	requeued []string
	dlq      []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	next := m.batches[0]
	m.batches = m.batches[1:]
	return next, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

func (m *mockConsumer) ackedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

type mockSyncer struct {
	syncFn func(ctx context.Context, req service.SyncRequest) (*model.SyncResult, error)
}

func (m *mockSyncer) Sync(ctx context.Context, req service.SyncRequest) (*model.SyncResult, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, req)
	}
	return &model.SyncResult{ProjectKey: req.ProjectKey, SourceType: req.SourceType, Succeeded: 1}, nil
}

func issueJob(id string, attempt int) queue.Message {
	return queue.Message{
		ID: id,
		Job: queue.SyncJob{
			JobID:      "job-" + id,
			TaskType:   queue.TaskTypeSyncIssues,
			ProjectKey: "ACME",
			MaxResults: 25,
			Attempt:    attempt,
		},
	}
}

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
		syncer   *mockSyncer
		w        *worker.Worker
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		syncer = &mockSyncer{}
		w = worker.New(consumer, syncer, worker.Config{MaxAttempts: 3})
	})

	It("runs the job as a sync request and acks it", func() {
		var got service.SyncRequest
		syncer.syncFn = func(_ context.Context, req service.SyncRequest) (*model.SyncResult, error) {
			got = req
			return &model.SyncResult{Succeeded: 3}, nil
		}

		Expect(w.HandleMessage(ctx, issueJob("1-0", 1))).To(Succeed())

		Expect(got.ProjectKey).To(Equal("ACME"))
		Expect(got.SourceType).To(Equal(model.SourceTypeJiraIssue))
		Expect(got.Source.MaxResults).To(Equal(25))
		Expect(consumer.acked).To(Equal([]string{"1-0"}))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("requeues a transient failure below the attempt limit", func() {
		syncer.syncFn = func(context.Context, service.SyncRequest) (*model.SyncResult, error) {
			return nil, domain.Transient("jira.search", "jira is unreachable", errors.New("dial tcp"))
		}

		Expect(w.HandleMessage(ctx, issueJob("1-0", 1))).NotTo(Succeed())

		Expect(consumer.requeued).To(Equal([]string{"1-0"}))
		Expect(consumer.dlq).To(BeEmpty())
		Expect(consumer.acked).To(BeEmpty())
	})

	It("dead-letters a transient failure on the last attempt", func() {
		syncer.syncFn = func(context.Context, service.SyncRequest) (*model.SyncResult, error) {
			return nil, domain.Transient("jira.search", "jira is unreachable", errors.New("dial tcp"))
		}

		Expect(w.HandleMessage(ctx, issueJob("1-0", 3))).NotTo(Succeed())

		Expect(consumer.dlq).To(Equal([]string{"1-0"}))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("dead-letters a non-retryable failure immediately", func() {
		syncer.syncFn = func(context.Context, service.SyncRequest) (*model.SyncResult, error) {
			return nil, domain.NotConfigured("jira")
		}

		Expect(w.HandleMessage(ctx, issueJob("1-0", 1))).NotTo(Succeed())

		Expect(consumer.dlq).To(Equal([]string{"1-0"}))
	})

	It("turns a panic into a failed job", func() {
		syncer.syncFn = func(context.Context, service.SyncRequest) (*model.SyncResult, error) {
			panic("boom")
		}

		err := w.HandleMessage(ctx, issueJob("1-0", 1))

		Expect(err).To(MatchError(ContainSubstring("panic: boom")))
		Expect(consumer.dlq).To(Equal([]string{"1-0"}))
	})

	It("drains batches until stopped", func() {
		consumer.batches = [][]queue.Message{
			{issueJob("1-0", 1), issueJob("2-0", 1)},
			{issueJob("3-0", 1)},
		}

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(consumer.ackedIDs).Should(Equal([]string{"1-0", "2-0", "3-0"}))
		w.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})
})
