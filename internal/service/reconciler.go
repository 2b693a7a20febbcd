package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/idgen"
	"github.com/electoral-digital/print-engine/internal/observability"
	"github.com/electoral-digital/print-engine/internal/provider"
	"github.com/electoral-digital/print-engine/internal/queue"
	"github.com/electoral-digital/print-engine/internal/repository"
)

// ReconcilerService applies print provider responses to the status
// histories of the requests they reference.
type ReconcilerService struct {
	certificates repository.CertificateRepository
	publisher    queue.Publisher
	logger       *zap.Logger
	metrics      *observability.Metrics
	newRequestID func() string
}

func NewReconcilerService(
	certificates repository.CertificateRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*ReconcilerService, error) {
	if certificates == nil {
		return nil, fmt.Errorf("certificate repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconcilerService{
		certificates: certificates,
		publisher:    publisher,
		logger:       logger,
		newRequestID: idgen.Token,
	}, nil
}

func (s *ReconcilerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ApplyBatchResponse records the provider's verdict on a whole batch. A
// SUCCESS moves the batch's sent requests to RECEIVED_BY_PRINT_PROVIDER; a
// FAILURE returns them to PENDING_ASSIGNMENT_TO_BATCH under fresh request
// ids so a future batch retries them. Only requests still in
// SENT_TO_PRINT_PROVIDER are touched, which makes redeliveries no-ops.
func (s *ReconcilerService) ApplyBatchResponse(ctx context.Context, response provider.BatchResponse) error {
	if err := response.Validate(); err != nil {
		return err
	}

	certificates, err := s.certificates.FindByBatchID(ctx, response.BatchID)
	if err != nil {
		return fmt.Errorf("failed to load batch %s: %w", response.BatchID, err)
	}

	var touched []*domain.Certificate
	updated := 0
	for i := range certificates {
		certificate := &certificates[i]
		changed := false
		for _, request := range certificate.RequestsInBatch(response.BatchID) {
			if request.CurrentStatus() != domain.StatusSentToPrintProvider {
				continue
			}

			switch response.Outcome {
			case provider.OutcomeSuccess:
				request.AddStatusEvent(domain.StatusReceivedByPrintProvider, response.Timestamp, response.Message)
			case provider.OutcomeFailure:
				request.AddStatusEvent(domain.StatusPendingAssignmentToBatch, response.Timestamp, response.Message)
				request.BatchID = nil
				request.RequestID = s.newRequestID()
			}
			changed = true
			updated++
		}
		if changed {
			touched = append(touched, certificate)
		}
	}

	if updated == 0 {
		s.logger.Info("batch response matched no sent requests, skipping",
			zap.String("batchId", response.BatchID),
			zap.String("outcome", response.Outcome.String()),
		)
		return nil
	}

	if err := s.certificates.SaveAll(ctx, touched); err != nil {
		return fmt.Errorf("failed to apply batch response for %s: %w", response.BatchID, err)
	}

	if s.metrics != nil {
		s.metrics.AddResponsesApplied("batch", updated)
	}
	s.logger.Info("batch response applied",
		zap.String("batchId", response.BatchID),
		zap.String("outcome", response.Outcome.String()),
		zap.Int("requests", updated),
	)
	return nil
}

// ApplyPrintResponse records a per-request progress update. The step and
// outcome pair must map to a known status; an unmapped pair is a protocol
// violation and nothing is written. An update matching the request's
// current status is acked without a duplicate history entry.
func (s *ReconcilerService) ApplyPrintResponse(ctx context.Context, response provider.PrintResponse) error {
	if err := response.Validate(); err != nil {
		return err
	}

	status, err := provider.StatusFor(response.Step, response.Outcome)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncProtocolViolation()
		}
		return err
	}

	certificate, err := s.certificates.FindByRequestID(ctx, response.RequestID)
	if err != nil {
		return fmt.Errorf("failed to load certificate for request %s: %w", response.RequestID, err)
	}

	request := certificate.RequestByID(response.RequestID)
	if request == nil {
		return fmt.Errorf("%w: certificate %s has no request %s",
			domain.ErrNotFound, certificate.ID, response.RequestID)
	}

	if request.CurrentStatus() == status {
		s.logger.Info("print response already applied, skipping",
			zap.String("requestId", response.RequestID),
			zap.String("status", status.String()),
		)
		return nil
	}

	request.AddStatusEvent(status, response.Timestamp, response.Message)
	if err := s.certificates.Save(ctx, certificate); err != nil {
		return fmt.Errorf("failed to apply print response for %s: %w", response.RequestID, err)
	}

	if s.metrics != nil {
		s.metrics.AddResponsesApplied("print", 1)
	}
	s.logger.Info("print response applied",
		zap.String("requestId", response.RequestID),
		zap.String("status", status.String()),
	)

	s.publishStatisticsUpdate(ctx, certificate)
	return nil
}

// publishStatisticsUpdate notifies the downstream statistics service of the
// status change. Best effort: a publish failure must not fail the apply,
// which has already been persisted.
func (s *ReconcilerService) publishStatisticsUpdate(ctx context.Context, certificate *domain.Certificate) {
	msg := queue.StatisticsUpdateMessage{
		SourceType:      certificate.SourceType,
		SourceReference: certificate.SourceReference,
		GssCode:         certificate.GssCode,
	}
	if err := s.publisher.Publish(ctx, queue.StatisticsQueue, msg); err != nil {
		s.logger.Error("failed to publish statistics update",
			zap.String("sourceReference", certificate.SourceReference),
			zap.Error(err),
		)
	}
}
