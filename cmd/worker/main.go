package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/electoral-digital/print-engine/internal/config"
	"github.com/electoral-digital/print-engine/internal/infra/postgresql"
	"github.com/electoral-digital/print-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/electoral-digital/print-engine/internal/infra/redis"
	"github.com/electoral-digital/print-engine/internal/infra/s3"
	"github.com/electoral-digital/print-engine/internal/observability"
	"github.com/electoral-digital/print-engine/internal/queue"
	"github.com/electoral-digital/print-engine/internal/repository"
	"github.com/electoral-digital/print-engine/internal/service"
	"github.com/electoral-digital/print-engine/internal/transfer"
)

const batchingLockTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger("print-engine-worker", cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	privateKey, err := os.ReadFile(cfg.SFTPPrivateKeyPath)
	if err != nil {
		logger.Fatal("failed to read sftp private key", zap.Error(err))
	}
	channel, err := transfer.NewSFTPChannel(transfer.SFTPConfig{
		Host:        cfg.SFTPHost,
		Port:        cfg.SFTPPort,
		User:        cfg.SFTPUser,
		PrivateKey:  privateKey,
		UploadDir:   cfg.PrintRequestUploadDir,
		DownloadDir: cfg.PrintResponseDownloadDir,
	})
	if err != nil {
		logger.Fatal("sftp initialization failed", zap.Error(err))
	}
	defer channel.Close()

	photos, err := s3.NewPhotoStore(ctx, cfg.AWSRegion)
	if err != nil {
		logger.Fatal("s3 initialization failed", zap.Error(err))
	}

	locker, err := infraredis.NewRedisLocker(rdb, batchingLockTTL)
	if err != nil {
		logger.Fatal("redis locker initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	certificates := repository.NewGormCertificateRepo(db)
	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	batching, err := service.NewBatchingService(
		certificates, publisher, locker,
		cfg.BatchSize, cfg.DailyPrintLimit, cfg.PendingPageSize,
		logger,
	)
	if err != nil {
		logger.Fatal("batching service initialization failed", zap.Error(err))
	}
	batching.SetMetrics(metrics)

	sender, err := service.NewBatchSenderService(certificates, photos, channel, logger)
	if err != nil {
		logger.Fatal("batch sender initialization failed", zap.Error(err))
	}
	sender.SetMetrics(metrics)

	reconciler, err := service.NewReconcilerService(certificates, publisher, logger)
	if err != nil {
		logger.Fatal("reconciler initialization failed", zap.Error(err))
	}
	reconciler.SetMetrics(metrics)

	responseFiles, err := service.NewResponseFileService(channel, publisher, reconciler, logger)
	if err != nil {
		logger.Fatal("response file service initialization failed", zap.Error(err))
	}
	responseFiles.SetMetrics(metrics)

	worker, err := service.NewWorkerService(consumer, sender, responseFiles, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	batchingJob, err := service.NewPeriodicJob(
		"batching",
		batching.Run,
		time.Duration(cfg.BatchRunIntervalSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("batching job initialization failed", zap.Error(err))
	}

	responseCheckJob, err := service.NewPeriodicJob(
		"response-file-check",
		responseFiles.CheckForResponseFiles,
		time.Duration(cfg.ResponseCheckIntervalSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("response check job initialization failed", zap.Error(err))
	}

	logger.Info("print-engine worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("batchSize", cfg.BatchSize),
		zap.Int("dailyPrintLimit", cfg.DailyPrintLimit),
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Start(groupCtx) })
	g.Go(func() error { return batchingJob.Start(groupCtx) })
	g.Go(func() error { return responseCheckJob.Start(groupCtx) })

	if err := g.Wait(); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
	logger.Info("print-engine worker stopped")
}
