package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/electoral-digital/print-engine/internal/observability"
	"github.com/electoral-digital/print-engine/internal/queue"
)

// WorkerService consumes the work queues and dispatches each delivery to
// the service that handles it.
type WorkerService struct {
	consumer      queue.Consumer
	sender        *BatchSenderService
	responseFiles *ResponseFileService
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
}

func NewWorkerService(
	consumer queue.Consumer,
	sender *BatchSenderService,
	responseFiles *ResponseFileService,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("batch sender is required")
	}
	if responseFiles == nil {
		return nil, fmt.Errorf("response file service is required")
	}
	// Every work queue needs at least one consumer, or claimed work on a
	// starved queue would sit forever.
	if minimum := len(queue.WorkQueueNames()); concurrency < minimum {
		concurrency = minimum
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:      consumer,
		sender:        sender,
		responseFiles: responseFiles,
		logger:        logger,
		concurrency:   concurrency,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the work queues until context cancellation, spreading the
// configured concurrency across them.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.handlerFor(queueName))
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) handlerFor(queueName string) queue.MessageHandler {
	var handler queue.MessageHandler
	switch queueName {
	case queue.ProcessBatchQueue:
		handler = s.handleProcessBatch
	case queue.ResponseFileQueue:
		handler = s.handleResponseFile
	default:
		return func(ctx context.Context, body []byte) error {
			return fmt.Errorf("%w: no handler for queue %s", queue.ErrBadMessage, queueName)
		}
	}

	return func(ctx context.Context, body []byte) error {
		if s.metrics != nil {
			s.metrics.IncWorkerInFlight(queueName)
			defer s.metrics.DecWorkerInFlight(queueName)
		}
		return handler(ctx, body)
	}
}

func (s *WorkerService) handleProcessBatch(ctx context.Context, body []byte) error {
	var msg queue.ProcessBatchMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: malformed process-batch message: %v", queue.ErrBadMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrBadMessage, err)
	}

	return s.sender.ProcessBatch(ctx, msg.BatchID)
}

func (s *WorkerService) handleResponseFile(ctx context.Context, body []byte) error {
	var msg queue.ProcessResponseFileMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: malformed response-file message: %v", queue.ErrBadMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrBadMessage, err)
	}

	return s.responseFiles.ProcessResponseFile(ctx, msg.Filename)
}
