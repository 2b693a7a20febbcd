package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/observability"
	"github.com/electoral-digital/print-engine/internal/print"
	"github.com/electoral-digital/print-engine/internal/repository"
	"github.com/electoral-digital/print-engine/internal/transfer"
)

// BatchSenderService turns an assigned batch into a print file archive and
// delivers it to the print provider.
type BatchSenderService struct {
	certificates repository.CertificateRepository
	photos       print.PhotoStore
	channel      transfer.Channel
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewBatchSenderService(
	certificates repository.CertificateRepository,
	photos print.PhotoStore,
	channel transfer.Channel,
	logger *zap.Logger,
) (*BatchSenderService, error) {
	if certificates == nil {
		return nil, fmt.Errorf("certificate repository is required")
	}
	if photos == nil {
		return nil, fmt.Errorf("photo store is required")
	}
	if channel == nil {
		return nil, fmt.Errorf("transfer channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchSenderService{
		certificates: certificates,
		photos:       photos,
		channel:      channel,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (s *BatchSenderService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ProcessBatch assembles the manifest and photo archive for one batch,
// streams it to the provider, and records SENT_TO_PRINT_PROVIDER against
// every included request. Redeliveries are acked without effect once the
// batch's requests have left ASSIGNED_TO_BATCH.
func (s *BatchSenderService) ProcessBatch(ctx context.Context, batchID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.WithContextLogger(s.logger, ctx)

	certificates, err := s.certificates.FindByBatchID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch %s: %w", batchID, err)
	}

	var owners []*domain.Certificate
	var items []print.BatchItem
	for i := range certificates {
		certificate := &certificates[i]
		included := false
		for _, request := range certificate.RequestsInBatch(batchID) {
			if request.CurrentStatus() != domain.StatusAssignedToBatch {
				continue
			}
			items = append(items, print.BatchItem{Certificate: certificate, Request: request})
			included = true
		}
		if included {
			owners = append(owners, certificate)
		}
	}

	if len(items) == 0 {
		logger.Info("batch has no sendable requests, skipping",
			zap.String("batchId", batchID),
		)
		return nil
	}

	generatedAt := s.now().UTC()
	rows := make([]print.Row, 0, len(items))
	photos := make([]print.PhotoRef, 0, len(items))
	for _, item := range items {
		photoPath := print.PhotoPath(batchID, item.Request.RequestID, item.Request.PhotoLocation)
		rows = append(rows, print.BuildManifestRow(item, photoPath))
		photos = append(photos, print.PhotoRef{
			Path:     photoPath,
			Location: item.Request.PhotoLocation,
		})
	}

	manifestName := print.ManifestFilename(batchID, generatedAt, len(items))
	archiveName := print.ArchiveFilename(batchID, generatedAt, len(items))

	archive := print.StreamArchive(ctx, s.photos, manifestName, rows, photos)
	sendErr := s.channel.Send(ctx, archiveName, archive)
	_ = archive.Close()

	if s.metrics != nil {
		s.metrics.ObserveArchiveSendDuration(s.now().UTC().Sub(generatedAt))
	}
	if sendErr != nil {
		if s.metrics != nil {
			s.metrics.IncArchiveSendFailed()
		}
		return fmt.Errorf("failed to send archive %s: %w", archiveName, sendErr)
	}

	sentAt := s.now().UTC()
	for _, item := range items {
		item.Request.AddStatusEvent(domain.StatusSentToPrintProvider, sentAt, nil)
	}
	if err := s.certificates.SaveAll(ctx, owners); err != nil {
		return fmt.Errorf("failed to record batch %s as sent: %w", batchID, err)
	}

	if s.metrics != nil {
		s.metrics.IncArchiveSent()
	}
	logger.Info("batch sent to print provider",
		zap.String("batchId", batchID),
		zap.String("archive", archiveName),
		zap.Int("requests", len(items)),
	)
	return nil
}
