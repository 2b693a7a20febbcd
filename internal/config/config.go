package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	AWSRegion string `env:"AWS_REGION,default=eu-west-2"`

	SFTPHost           string `env:"SFTP_HOST,required=true"`
	SFTPPort           int    `env:"SFTP_PORT,default=22"`
	SFTPUser           string `env:"SFTP_USER,required=true"`
	SFTPPrivateKeyPath string `env:"SFTP_PRIVATE_KEY_PATH,required=true"`

	// PrintRequestUploadDir is the provider's inbound directory, where batch
	// archives are written. PrintResponseDownloadDir is the provider's
	// outbound directory, where response files appear.
	PrintRequestUploadDir    string `env:"PRINT_REQUEST_UPLOAD_DIR,default=EROP/InBound"`
	PrintResponseDownloadDir string `env:"PRINT_RESPONSE_DOWNLOAD_DIR,default=EROP/OutBound"`

	BatchSize       int `env:"BATCH_SIZE,default=50"`
	DailyPrintLimit int `env:"DAILY_PRINT_LIMIT,default=150000"`
	PendingPageSize int `env:"PENDING_PAGE_SIZE,default=500"`

	BatchRunIntervalSec      int `env:"BATCH_RUN_INTERVAL_SEC,default=300"`
	ResponseCheckIntervalSec int `env:"RESPONSE_CHECK_INTERVAL_SEC,default=300"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=4"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
