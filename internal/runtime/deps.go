// Package runtime wires clients and workers together and drives them either
// from the Lambda runtime or from an in-process poll loop.
package runtime

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/config"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/queue"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/retry"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/scanner"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/secret"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/webhook"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// Dependencies holds the clients shared by every invocation of a worker.
// They are built once per process.
type Dependencies struct {
	Config  *config.Config
	AWS     aws.Config
	Storage storage.Storage
	SQS     queue.SQSAPI
	Secrets secret.SecretsAPI
}

// NewDependencies builds the AWS clients and the object store for cfg.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	l := pkglog.L()

	awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}

	var st storage.Storage
	switch cfg.Storage.Type {
	case "local":
		local, err := storage.NewLocalStorage(cfg.Storage.Local)
		if err != nil {
			return nil, fmt.Errorf("failed to init local storage: %w", err)
		}
		st = local
		l.Info().Str("path", local.GetBasePath()).Msg("local storage initialised")
	default:
		s3st := storage.NewS3Storage(awsCfg, cfg.Storage.S3)
		st = s3st
		l.Info().
			Str("endpoint", cfg.Storage.S3.Endpoint).
			Str(pkglog.FieldBucket, s3st.GetBucket()).
			Msg("s3 storage initialised")
	}

	return &Dependencies{
		Config:  cfg,
		AWS:     awsCfg,
		Storage: st,
		SQS:     sqs.NewFromConfig(awsCfg),
		Secrets: secretsmanager.NewFromConfig(awsCfg),
	}, nil
}

// Notifier returns a webhook notifier signing with the configured secret.
func (d *Dependencies) Notifier() *webhook.Notifier {
	return webhook.NewNotifier(
		webhook.Config{URL: d.Config.Webhook.URL, Timeout: d.Config.Webhook.Timeout},
		secret.NewProvider(d.Secrets, d.Config.Webhook.SecretARN),
	)
}

// Publisher returns a publisher for queueURL.
func (d *Dependencies) Publisher(queueURL string) *queue.SQSPublisher {
	return queue.NewSQSPublisher(d.SQS, queueURL)
}

// ScanAdapter returns the ClamAV-backed scanner for the configured store.
func (d *Dependencies) ScanAdapter() *scanner.Adapter {
	clam := scanner.NewClamScanner(scanner.ClamConfig{
		Binary:       d.Config.Scanner.Binary,
		DatabasePath: d.Config.Scanner.DatabasePath,
	}, scanner.ExecRunner{})
	return scanner.NewAdapter(d.Storage, clam, d.Config.Scanner.ScratchDir)
}

// RelayPolicy returns the retry policy relays publish with.
func (d *Dependencies) RelayPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: d.Config.Relay.MaxAttempts,
		Backoff:     d.Config.Relay.Backoff,
	}
}
