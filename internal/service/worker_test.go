package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/queue"
)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn == nil {
		<-ctx.Done()
		return nil
	}
	return f.consumeFn(ctx, queueName, handler)
}

func (f *fakeConsumer) Close() error { return nil }

func newWorkerService(t *testing.T, repo *fakeCertificateRepo, channel *fakeChannel, consumer queue.Consumer) *WorkerService {
	t.Helper()

	sender, err := NewBatchSenderService(repo, &fakePhotoStore{}, channel, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBatchSenderService() error = %v", err)
	}
	responseFiles := newResponseFileService(t, channel, &fakePublisher{}, repo)

	w, err := NewWorkerService(consumer, sender, responseFiles, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	return w
}

func TestWorkerHandlesProcessBatchMessage(t *testing.T) {
	t.Parallel()

	const batchID = "aabbccddeeff00112233445566778899"
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	certificates := []domain.Certificate{
		assignedCertificate("01", batchID, domain.StatusAssignedToBatch, at),
	}
	repo := &fakeCertificateRepo{
		findByBatchIDFn: func(ctx context.Context, got string) ([]domain.Certificate, error) {
			return certificates, nil
		},
	}
	channel := &fakeChannel{}

	w := newWorkerService(t, repo, channel, &fakeConsumer{})
	body, _ := json.Marshal(queue.ProcessBatchMessage{BatchID: batchID})

	handler := w.handlerFor(queue.ProcessBatchQueue)
	if err := handler(context.Background(), body); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("sent archives = %d, want 1", len(channel.sent))
	}
}

func TestWorkerDeadLettersMalformedMessages(t *testing.T) {
	t.Parallel()

	w := newWorkerService(t, &fakeCertificateRepo{}, &fakeChannel{}, &fakeConsumer{})

	for _, queueName := range queue.WorkQueueNames() {
		handler := w.handlerFor(queueName)
		if err := handler(context.Background(), []byte("not json")); !errors.Is(err, queue.ErrBadMessage) {
			t.Fatalf("queue %s: error = %v, want ErrBadMessage", queueName, err)
		}
		if err := handler(context.Background(), []byte("{}")); !errors.Is(err, queue.ErrBadMessage) {
			t.Fatalf("queue %s: empty message error = %v, want ErrBadMessage", queueName, err)
		}
	}
}

func TestWorkerStartSpreadsConcurrencyAcrossQueues(t *testing.T) {
	t.Parallel()

	consumed := make(chan string, 4)
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			consumed <- queueName
			<-ctx.Done()
			return nil
		},
	}

	w := newWorkerService(t, &fakeCertificateRepo{}, &fakeChannel{}, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-consumed:
			seen[name]++
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for consumers to start")
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if seen[queue.ProcessBatchQueue] != 1 || seen[queue.ResponseFileQueue] != 1 {
		t.Fatalf("queue distribution = %v, want one worker per queue", seen)
	}
}

func TestWorkerCoversEveryQueueAtLowConcurrency(t *testing.T) {
	t.Parallel()

	consumed := make(chan string, 4)
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			consumed <- queueName
			<-ctx.Done()
			return nil
		},
	}

	sender, err := NewBatchSenderService(&fakeCertificateRepo{}, &fakePhotoStore{}, &fakeChannel{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBatchSenderService() error = %v", err)
	}
	responseFiles := newResponseFileService(t, &fakeChannel{}, &fakePublisher{}, &fakeCertificateRepo{})

	// Concurrency below the queue count is raised so no queue is starved.
	w, err := NewWorkerService(consumer, sender, responseFiles, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	seen := map[string]int{}
	for i := 0; i < len(queue.WorkQueueNames()); i++ {
		select {
		case name := <-consumed:
			seen[name]++
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for consumers, started so far: %v", seen)
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, queueName := range queue.WorkQueueNames() {
		if seen[queueName] == 0 {
			t.Fatalf("queue %s has no consumer, distribution = %v", queueName, seen)
		}
	}
}
