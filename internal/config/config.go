// Package config loads the settings shared by every worker binary.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/shubomifashakin/Temp-AWS-Infra/pkg/config"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// Worker names a deployable worker.
type Worker string

const (
	WorkerValidator          Worker = "validator"
	WorkerQuarantineRemover  Worker = "quarantine-remover"
	WorkerDeletionNotifier   Worker = "deletion-notifier"
	WorkerUserDeleteExecutor Worker = "user-delete-executor"
	WorkerPutRelay           Worker = "put-relay"
	WorkerDeleteRelay        Worker = "delete-relay"
)

// Runtime modes.
const (
	ModeLambda = "lambda"
	ModePoll   = "poll"
)

// StorageConfig mirrors the nested structure used by other services.
type StorageConfig struct {
	Type  string              `mapstructure:"type"` // "s3" or "local"
	S3    storage.S3Config    `mapstructure:"s3"`
	Local storage.LocalConfig `mapstructure:"local"`
}

type QueueConfig struct {
	Target   string `mapstructure:"target_url"`   // where relays publish
	Infected string `mapstructure:"infected_url"` // quarantine requests
	Source   string `mapstructure:"source_url"`   // consumed in poll mode
}

type WebhookConfig struct {
	URL       string        `mapstructure:"url"`
	SecretARN string        `mapstructure:"secret_arn"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ScannerConfig struct {
	Binary       string `mapstructure:"binary"`
	DatabasePath string `mapstructure:"database_path"`
	ScratchDir   string `mapstructure:"scratch_dir"`
}

type RuntimeConfig struct {
	Mode              string        `mapstructure:"mode"`
	HealthAddr        string        `mapstructure:"health_addr"`
	BatchSize         int32         `mapstructure:"batch_size"`
	WaitTime          time.Duration `mapstructure:"wait_time"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
}

type KafkaConfig struct {
	Brokers          string   `mapstructure:"brokers"`
	Topic            string   `mapstructure:"topic"`
	GroupID          string   `mapstructure:"group_id"`
	EventNameFilters []string `mapstructure:"event_name_filters"`
}

type RelayConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

type Config struct {
	Log     pkglog.Config `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Queues  QueueConfig   `mapstructure:"queues"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Relay   RelayConfig   `mapstructure:"relay"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.local.base_path", "./data/storage")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("scanner.binary", "clamscan")
	v.SetDefault("scanner.database_path", "/var/lib/clamav")
	v.SetDefault("runtime.mode", ModeLambda)
	v.SetDefault("runtime.health_addr", ":8080")
	v.SetDefault("runtime.batch_size", 10)
	v.SetDefault("runtime.wait_time", "20s")
	v.SetDefault("runtime.batch_timeout", "5m")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "minio-events")
	v.SetDefault("relay.max_attempts", 4)
	v.SetDefault("relay.backoff", "2s")

	// Env bindings
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.service_name", "SERVICE_NAME")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.region", "AWS_REGION")
	v.BindEnv("storage.s3.bucket", "BUCKET_NAME")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.s3.use_path_style", "S3_USE_PATH_STYLE")
	v.BindEnv("storage.local.base_path", "STORAGE_LOCAL_PATH")
	v.BindEnv("storage.local.bucket", "BUCKET_NAME")
	v.BindEnv("queues.target_url", "SQS_QUEUE_URL")
	v.BindEnv("queues.infected_url", "INFECTED_QUEUE_URL")
	v.BindEnv("queues.source_url", "SOURCE_QUEUE_URL")
	v.BindEnv("webhook.url", "WEBHOOK_URL")
	v.BindEnv("webhook.secret_arn", "WEBHOOK_SECRET_ARN")
	v.BindEnv("webhook.timeout", "WEBHOOK_TIMEOUT")
	v.BindEnv("scanner.binary", "CLAMSCAN_PATH")
	v.BindEnv("scanner.database_path", "CLAMAV_DB_PATH")
	v.BindEnv("scanner.scratch_dir", "SCRATCH_DIR")
	v.BindEnv("runtime.mode", "RUNTIME_MODE")
	v.BindEnv("runtime.health_addr", "HEALTH_ADDR")
	v.BindEnv("runtime.batch_timeout", "BATCH_TIMEOUT")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Require reports every setting w needs that has no value. The error is a
// *pkgconfig.MissingError.
func (c *Config) Require(w Worker) error {
	req := map[string]string{}

	switch w {
	case WorkerValidator:
		req["INFECTED_QUEUE_URL"] = c.Queues.Infected
		req["WEBHOOK_URL"] = c.Webhook.URL
		req["WEBHOOK_SECRET_ARN"] = c.Webhook.SecretARN
		req["CLAMAV_DB_PATH"] = c.Scanner.DatabasePath
	case WorkerQuarantineRemover:
		req["BUCKET_NAME"] = c.Storage.S3.Bucket
		req["WEBHOOK_URL"] = c.Webhook.URL
		req["WEBHOOK_SECRET_ARN"] = c.Webhook.SecretARN
	case WorkerDeletionNotifier:
		req["WEBHOOK_URL"] = c.Webhook.URL
		req["WEBHOOK_SECRET_ARN"] = c.Webhook.SecretARN
	case WorkerUserDeleteExecutor:
		req["BUCKET_NAME"] = c.Storage.S3.Bucket
	case WorkerPutRelay, WorkerDeleteRelay:
		req["SQS_QUEUE_URL"] = c.Queues.Target
	default:
		return fmt.Errorf("unknown worker %q", w)
	}

	switch c.Runtime.Mode {
	case ModeLambda:
	case ModePoll:
		if w == WorkerPutRelay || w == WorkerDeleteRelay {
			req["KAFKA_BROKERS"] = c.Kafka.Brokers
			req["KAFKA_TOPIC"] = c.Kafka.Topic
		} else {
			req["SOURCE_QUEUE_URL"] = c.Queues.Source
		}
	default:
		return fmt.Errorf("unknown runtime mode %q", c.Runtime.Mode)
	}

	return pkgconfig.Require(req)
}
