package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/idgen"
	"github.com/electoral-digital/print-engine/internal/lock"
	"github.com/electoral-digital/print-engine/internal/observability"
	"github.com/electoral-digital/print-engine/internal/queue"
	"github.com/electoral-digital/print-engine/internal/repository"
)

const (
	batchingLockName = "print-batching"

	defaultBatchSize       = 50
	defaultDailyPrintLimit = 150_000
	defaultPendingPageSize = 500
)

// BatchingService assigns pending certificates to print batches. Run is
// guarded by a distributed lock so only one instance batches at a time.
type BatchingService struct {
	certificates repository.CertificateRepository
	publisher    queue.Publisher
	locker       lock.Locker
	logger       *zap.Logger
	metrics      *observability.Metrics

	batchSize  int
	dailyLimit int
	pageSize   int
	newBatchID func() string
	now        func() time.Time
}

func NewBatchingService(
	certificates repository.CertificateRepository,
	publisher queue.Publisher,
	locker lock.Locker,
	batchSize int,
	dailyLimit int,
	pageSize int,
	logger *zap.Logger,
) (*BatchingService, error) {
	if certificates == nil {
		return nil, fmt.Errorf("certificate repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if dailyLimit <= 0 {
		dailyLimit = defaultDailyPrintLimit
	}
	if pageSize <= 0 {
		pageSize = defaultPendingPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchingService{
		certificates: certificates,
		publisher:    publisher,
		locker:       locker,
		logger:       logger,
		batchSize:    batchSize,
		dailyLimit:   dailyLimit,
		pageSize:     pageSize,
		newBatchID:   idgen.Token,
		now:          time.Now,
	}, nil
}

func (s *BatchingService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Run performs one batching pass: it takes the batching lock, works out how
// much of today's print capacity is left, assigns pending certificates to
// batches oldest application first, and publishes one process-batch message
// per created batch.
func (s *BatchingService) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	release, err := s.locker.Acquire(ctx, batchingLockName)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Info("batching already running elsewhere, skipping")
			return nil
		}
		return fmt.Errorf("failed to acquire batching lock: %w", err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("failed to release batching lock", zap.Error(err))
		}
	}()

	capacity, err := s.remainingDailyCapacity(ctx)
	if err != nil {
		return err
	}
	if capacity <= 0 {
		s.logger.Info("daily print limit reached, no batching", zap.Int("dailyLimit", s.dailyLimit))
		return nil
	}

	assigned := 0
	batches := 0
	for assigned < capacity {
		pending, err := s.certificates.FindByStatus(ctx, domain.StatusPendingAssignmentToBatch, s.pageSize)
		if err != nil {
			return fmt.Errorf("failed to fetch pending certificates: %w", err)
		}
		if len(pending) == 0 {
			break
		}

		pageAssigned, pageBatches, err := s.assignPage(ctx, pending, capacity-assigned)
		if err != nil {
			return err
		}
		assigned += pageAssigned
		batches += pageBatches

		// Nothing assigned means the page held no assignable requests; a
		// short page means the backlog is exhausted.
		if pageAssigned == 0 || len(pending) < s.pageSize {
			break
		}
	}

	if assigned > 0 {
		s.logger.Info("batching pass complete",
			zap.Int("requestsAssigned", assigned),
			zap.Int("batchesCreated", batches),
		)
	}
	return nil
}

// assignPage walks one page of pending certificates in order and chunks
// their pending requests into batches of at most batchSize. A certificate
// with more pending requests than batchSize spans consecutive batches; no
// batch ever exceeds batchSize. remaining counts how many more requests
// today's limit allows.
func (s *BatchingService) assignPage(
	ctx context.Context,
	pending []domain.Certificate,
	remaining int,
) (int, int, error) {
	assigned := 0
	batches := 0

	var batch []*domain.Certificate
	var batchRequests []*domain.PrintRequest

	flush := func() error {
		if len(batchRequests) == 0 {
			return nil
		}
		if err := s.createBatch(ctx, batch, batchRequests); err != nil {
			return err
		}
		assigned += len(batchRequests)
		batches++
		batch = nil
		batchRequests = nil
		return nil
	}

	for i := range pending {
		certificate := &pending[i]
		for _, request := range certificate.PendingRequests() {
			if assigned+len(batchRequests) >= remaining {
				if err := flush(); err != nil {
					return assigned, batches, err
				}
				return assigned, batches, nil
			}

			if len(batch) == 0 || batch[len(batch)-1] != certificate {
				batch = append(batch, certificate)
			}
			batchRequests = append(batchRequests, request)

			if len(batchRequests) >= s.batchSize {
				if err := flush(); err != nil {
					return assigned, batches, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return assigned, batches, err
	}
	return assigned, batches, nil
}

func (s *BatchingService) createBatch(ctx context.Context, certificates []*domain.Certificate, requests []*domain.PrintRequest) error {
	batchID := s.newBatchID()
	now := s.now().UTC()

	for _, request := range requests {
		request.BatchID = &batchID
		request.AddStatusEvent(domain.StatusAssignedToBatch, now, nil)
	}

	if err := s.certificates.SaveAll(ctx, certificates); err != nil {
		return fmt.Errorf("failed to save batch %s: %w", batchID, err)
	}

	msg := queue.ProcessBatchMessage{BatchID: batchID}
	if err := s.publisher.Publish(ctx, queue.ProcessBatchQueue, msg); err != nil {
		return fmt.Errorf("failed to publish batch %s: %w", batchID, err)
	}

	if s.metrics != nil {
		s.metrics.IncBatchCreated()
		s.metrics.AddRequestsAssigned(len(requests))
	}
	s.logger.Info("batch created",
		zap.String("batchId", batchID),
		zap.Int("requests", len(requests)),
	)
	return nil
}

// remainingDailyCapacity counts assignments already made in the current UTC
// day and subtracts them from the daily print limit.
func (s *BatchingService) remainingDailyCapacity(ctx context.Context) (int, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	assignedToday, err := s.certificates.CountAssignedToBatchBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's assignments: %w", err)
	}

	return s.dailyLimit - int(assignedToday), nil
}
