package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultJobInterval = 5 * time.Minute

// PeriodicJob runs a task on a fixed interval until context cancellation.
// Both the batching pass and the response file check run under one.
type PeriodicJob struct {
	name     string
	run      func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
}

func NewPeriodicJob(
	name string,
	run func(ctx context.Context) error,
	interval time.Duration,
	logger *zap.Logger,
) (*PeriodicJob, error) {
	if name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if run == nil {
		return nil, fmt.Errorf("job function is required")
	}
	if interval <= 0 {
		interval = defaultJobInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PeriodicJob{
		name:     name,
		run:      run,
		interval: interval,
		logger:   logger,
	}, nil
}

func (j *PeriodicJob) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run once up front so due work does not wait for the first ticker edge.
	if err := j.run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("job run failed", zap.String("job", j.name), zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				j.logger.Error("job run failed", zap.String("job", j.name), zap.Error(err))
			}
		}
	}
}
