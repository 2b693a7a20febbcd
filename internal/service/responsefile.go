package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/observability"
	"github.com/electoral-digital/print-engine/internal/provider"
	"github.com/electoral-digital/print-engine/internal/queue"
	"github.com/electoral-digital/print-engine/internal/transfer"
)

// ResponseFileService discovers provider response files on the transfer
// channel, claims them, and applies their contents via the reconciler.
type ResponseFileService struct {
	channel    transfer.Channel
	publisher  queue.Publisher
	reconciler *ReconcilerService
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewResponseFileService(
	channel transfer.Channel,
	publisher queue.Publisher,
	reconciler *ReconcilerService,
	logger *zap.Logger,
) (*ResponseFileService, error) {
	if channel == nil {
		return nil, fmt.Errorf("transfer channel is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResponseFileService{
		channel:    channel,
		publisher:  publisher,
		reconciler: reconciler,
		logger:     logger,
	}, nil
}

func (s *ResponseFileService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CheckForResponseFiles claims every unclaimed response file in the
// provider's outbound directory and publishes one processing message per
// claim. A failed claim usually means another instance got there first, so
// the scan moves on to the next file.
func (s *ResponseFileService) CheckForResponseFiles(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	filenames, err := s.channel.ListResponseFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list response files: %w", err)
	}

	for _, filename := range filenames {
		if transfer.IsClaimed(filename) {
			continue
		}

		claimed, err := s.channel.Claim(ctx, filename)
		if err != nil {
			s.logger.Warn("failed to claim response file, skipping",
				zap.String("filename", filename),
				zap.Error(err),
			)
			continue
		}

		msg := queue.ProcessResponseFileMessage{Filename: claimed}
		if err := s.publisher.Publish(ctx, queue.ResponseFileQueue, msg); err != nil {
			s.logger.Error("failed to publish claimed response file",
				zap.String("filename", claimed),
				zap.Error(err),
			)
			continue
		}

		if s.metrics != nil {
			s.metrics.IncResponseFileClaimed()
		}
		s.logger.Info("response file claimed", zap.String("filename", claimed))
	}

	return nil
}

// ProcessResponseFile fetches a claimed response file, applies every entry
// it holds, and removes the file. Entries are applied independently: a bad
// entry is logged and skipped, while an infrastructure failure requeues the
// whole file, whose entries reapply as no-ops. A file that is not valid
// JSON can never be applied and is dead-lettered.
func (s *ResponseFileService) ProcessResponseFile(ctx context.Context, filename string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.WithContextLogger(s.logger, ctx)

	reader, err := s.channel.Fetch(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to fetch response file %s: %w", filename, err)
	}
	defer reader.Close()

	var file provider.ResponseFile
	if err := json.NewDecoder(reader).Decode(&file); err != nil {
		return fmt.Errorf("%w: response file %s is not valid JSON: %v", queue.ErrBadMessage, filename, err)
	}

	applied := 0
	skipped := 0
	for _, response := range file.BatchResponses {
		if err := s.reconciler.ApplyBatchResponse(ctx, response); err != nil {
			if isEntryError(err) {
				logger.Warn("skipping unapplicable batch response",
					zap.String("filename", filename),
					zap.String("batchId", response.BatchID),
					zap.Error(err),
				)
				skipped++
				continue
			}
			return err
		}
		applied++
	}
	for _, response := range file.PrintResponses {
		if err := s.reconciler.ApplyPrintResponse(ctx, response); err != nil {
			if isEntryError(err) {
				logger.Warn("skipping unapplicable print response",
					zap.String("filename", filename),
					zap.String("requestId", response.RequestID),
					zap.Error(err),
				)
				skipped++
				continue
			}
			return err
		}
		applied++
	}

	if err := s.channel.Remove(ctx, filename); err != nil {
		return fmt.Errorf("failed to remove processed response file %s: %w", filename, err)
	}

	if s.metrics != nil {
		s.metrics.IncResponseFileProcessed()
	}
	logger.Info("response file processed",
		zap.String("filename", filename),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
	)
	return nil
}

// isEntryError reports whether an apply failure is inherent to the entry
// (and will fail the same way on every redelivery) rather than transient.
func isEntryError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrProtocolViolation) ||
		errors.Is(err, domain.ErrNotFound)
}
