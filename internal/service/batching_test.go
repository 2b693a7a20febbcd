package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/lock"
	"github.com/electoral-digital/print-engine/internal/queue"
)

func newBatchingService(
	t *testing.T,
	repo *fakeCertificateRepo,
	publisher *fakePublisher,
	locker *fakeLocker,
	batchSize, dailyLimit, pageSize int,
) *BatchingService {
	t.Helper()

	s, err := NewBatchingService(repo, publisher, locker, batchSize, dailyLimit, pageSize, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBatchingService() error = %v", err)
	}

	sequence := 0
	s.newBatchID = func() string {
		sequence++
		return fmt.Sprintf("batch-%03d", sequence)
	}
	s.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	}
	return s
}

func TestBatchingSplitsPendingIntoBatches(t *testing.T) {
	t.Parallel()

	received := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	pending := make([]domain.Certificate, 0, 12)
	for i := 0; i < 12; i++ {
		pending = append(pending, pendingCertificate(fmt.Sprintf("%02d", i), received.Add(time.Duration(i)*time.Minute)))
	}

	fetched := false
	repo := &fakeCertificateRepo{
		findByStatusFn: func(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
			if status != domain.StatusPendingAssignmentToBatch {
				t.Fatalf("status = %q, want PENDING_ASSIGNMENT_TO_BATCH", status)
			}
			if fetched {
				return nil, nil
			}
			fetched = true
			return pending, nil
		},
	}
	publisher := &fakePublisher{}
	locker := &fakeLocker{}

	s := newBatchingService(t, repo, publisher, locker, 4, 150000, 500)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(repo.saved) != 3 {
		t.Fatalf("saved batches = %d, want 3", len(repo.saved))
	}

	seenBatchIDs := map[string]bool{}
	for _, group := range repo.saved {
		var batchID string
		count := 0
		for _, certificate := range group {
			for i := range certificate.PrintRequests {
				request := &certificate.PrintRequests[i]
				if request.BatchID == nil {
					t.Fatal("assigned request has no batch id")
				}
				if batchID == "" {
					batchID = *request.BatchID
				}
				if *request.BatchID != batchID {
					t.Fatalf("mixed batch ids in one group: %q vs %q", *request.BatchID, batchID)
				}
				if request.CurrentStatus() != domain.StatusAssignedToBatch {
					t.Fatalf("request status = %q, want ASSIGNED_TO_BATCH", request.CurrentStatus())
				}
				count++
			}
		}
		if count != 4 {
			t.Fatalf("batch %s has %d requests, want 4", batchID, count)
		}
		seenBatchIDs[batchID] = true
	}
	if len(seenBatchIDs) != 3 {
		t.Fatalf("distinct batch ids = %d, want 3", len(seenBatchIDs))
	}

	published := publisher.messages()
	if len(published) != 3 {
		t.Fatalf("published messages = %d, want 3", len(published))
	}
	for _, p := range published {
		if p.queue != queue.ProcessBatchQueue {
			t.Fatalf("published to %q, want %q", p.queue, queue.ProcessBatchQueue)
		}
		msg, ok := p.msg.(queue.ProcessBatchMessage)
		if !ok {
			t.Fatalf("published message type %T", p.msg)
		}
		if !seenBatchIDs[msg.BatchID] {
			t.Fatalf("published unknown batch id %q", msg.BatchID)
		}
	}

	if !locker.released {
		t.Fatal("batching lock was not released")
	}
}

func TestBatchingNeverExceedsBatchSize(t *testing.T) {
	t.Parallel()

	received := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// One certificate carrying more pending requests than the batch size.
	certificate := pendingCertificate("00", received)
	for i := 1; i < 3; i++ {
		request := certificate.PrintRequests[0]
		request.ID = fmt.Sprintf("req-00-%d", i)
		request.RequestID = fmt.Sprintf("request-id-00-%d", i)
		certificate.PrintRequests = append(certificate.PrintRequests, request)
	}
	pending := []domain.Certificate{certificate}

	fetched := false
	repo := &fakeCertificateRepo{
		findByStatusFn: func(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
			if fetched {
				return nil, nil
			}
			fetched = true
			return pending, nil
		},
	}
	publisher := &fakePublisher{}

	s := newBatchingService(t, repo, publisher, &fakeLocker{}, 2, 150000, 500)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	perBatch := map[string]int{}
	for i := range pending[0].PrintRequests {
		request := &pending[0].PrintRequests[i]
		if request.CurrentStatus() != domain.StatusAssignedToBatch {
			t.Fatalf("request %s status = %q, want ASSIGNED_TO_BATCH", request.ID, request.CurrentStatus())
		}
		if request.BatchID == nil {
			t.Fatalf("request %s has no batch id", request.ID)
		}
		perBatch[*request.BatchID]++
	}

	for batchID, count := range perBatch {
		if count > 2 {
			t.Fatalf("batch %s has %d requests, exceeds batch size 2", batchID, count)
		}
	}
	if len(perBatch) != 2 {
		t.Fatalf("distinct batch ids = %d, want 2 (one full, one remainder)", len(perBatch))
	}
	if got := len(publisher.messages()); got != 2 {
		t.Fatalf("published messages = %d, want 2", got)
	}
}

func TestBatchingHonorsDailyCapacity(t *testing.T) {
	t.Parallel()

	received := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	pending := make([]domain.Certificate, 0, 12)
	for i := 0; i < 12; i++ {
		pending = append(pending, pendingCertificate(fmt.Sprintf("%02d", i), received))
	}

	repo := &fakeCertificateRepo{
		findByStatusFn: func(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
			return pending, nil
		},
		countAssignedBetweenFn: func(ctx context.Context, from, to time.Time) (int64, error) {
			if !from.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("from = %v, want start of UTC day", from)
			}
			if to.Sub(from) != 24*time.Hour {
				t.Fatalf("window = %v, want 24h", to.Sub(from))
			}
			return 95, nil
		},
	}
	publisher := &fakePublisher{}

	// Limit 100 with 95 already assigned leaves room for 5 of the 12.
	s := newBatchingService(t, repo, publisher, &fakeLocker{}, 4, 100, 500)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assigned := 0
	for _, group := range repo.saved {
		for _, certificate := range group {
			for i := range certificate.PrintRequests {
				if certificate.PrintRequests[i].CurrentStatus() == domain.StatusAssignedToBatch {
					assigned++
				}
			}
		}
	}
	if assigned != 5 {
		t.Fatalf("assigned = %d, want 5", assigned)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("batches = %d, want 2 (one full, one remainder)", len(repo.saved))
	}
}

func TestBatchingSkipsWhenLimitExhausted(t *testing.T) {
	t.Parallel()

	repo := &fakeCertificateRepo{
		findByStatusFn: func(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
			t.Fatal("pending certificates should not be fetched when the limit is exhausted")
			return nil, nil
		},
		countAssignedBetweenFn: func(ctx context.Context, from, to time.Time) (int64, error) {
			return 100, nil
		},
	}

	s := newBatchingService(t, repo, &fakePublisher{}, &fakeLocker{}, 4, 100, 500)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestBatchingSkipsWhenLockHeldElsewhere(t *testing.T) {
	t.Parallel()

	repo := &fakeCertificateRepo{
		findByStatusFn: func(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
			t.Fatal("no work should run without the lock")
			return nil, nil
		},
	}
	locker := &fakeLocker{
		acquireFn: func(ctx context.Context, name string) (func(context.Context) error, error) {
			return nil, lock.ErrNotAcquired
		},
	}

	s := newBatchingService(t, repo, &fakePublisher{}, locker, 4, 100, 500)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestBatchingPropagatesLockError(t *testing.T) {
	t.Parallel()

	lockErr := errors.New("redis unreachable")
	locker := &fakeLocker{
		acquireFn: func(ctx context.Context, name string) (func(context.Context) error, error) {
			return nil, lockErr
		},
	}

	s := newBatchingService(t, &fakeCertificateRepo{}, &fakePublisher{}, locker, 4, 100, 500)
	if err := s.Run(context.Background()); !errors.Is(err, lockErr) {
		t.Fatalf("Run() error = %v, want lock error", err)
	}
}
