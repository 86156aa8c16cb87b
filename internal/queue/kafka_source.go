package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// NotificationHandler receives the records of one bucket notification.
type NotificationHandler func(ctx context.Context, records []domain.ObjectRecord) error

// KafkaSourceConfig configures a KafkaNotificationSource.
type KafkaSourceConfig struct {
	Brokers          string
	Topic            string
	GroupID          string
	BucketFilter     string   // empty accepts every bucket
	EventNameFilters []string // empty accepts every event
}

// KafkaNotificationSource consumes MinIO bucket notifications published to
// Kafka and hands the matching records to a handler. Offsets are committed
// after the handler returns, so a crash mid-handling redelivers the
// notification.
type KafkaNotificationSource struct {
	consumer *kafka.Consumer
	cfg      KafkaSourceConfig
	handler  NotificationHandler
	doneCh   chan struct{}
	started  bool
}

// NewKafkaNotificationSource creates a consumer for cfg.Topic.
func NewKafkaNotificationSource(cfg KafkaSourceConfig, handler NotificationHandler) (*KafkaNotificationSource, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &KafkaNotificationSource{
		consumer: c,
		cfg:      cfg,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes and begins consuming in a background goroutine.
func (ks *KafkaNotificationSource) Start(ctx context.Context) error {
	if err := ks.consumer.Subscribe(ks.cfg.Topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", ks.cfg.Topic, err)
	}

	l := pkglog.L()
	l.Info().Str("topic", ks.cfg.Topic).Str("group", ks.cfg.GroupID).Msg("bucket notification consumer started")

	ks.started = true
	go ks.consumeLoop(ctx)

	return nil
}

// Run consumes until ctx is cancelled.
func (ks *KafkaNotificationSource) Run(ctx context.Context) error {
	if err := ks.Start(ctx); err != nil {
		return err
	}
	<-ks.doneCh
	return nil
}

func (ks *KafkaNotificationSource) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(ks.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("bucket notification consumer shutting down")
			return
		default:
			msg, err := ks.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka consumer error")
				continue
			}
			// In-flight processing completes even after the shutdown signal.
			ks.processMessage(context.WithoutCancel(ctx), msg)
		}
	}
}

func (ks *KafkaNotificationSource) processMessage(ctx context.Context, msg *kafka.Message) {
	l := pkglog.L()
	defer ks.commit(msg)

	records, err := domain.ParseObjectNotification(msg.Value)
	if err != nil {
		l.Error().Err(err).Msg("failed to parse bucket notification")
		return
	}

	records = ks.filter(records)
	if len(records) == 0 {
		return
	}

	if err := ks.handler(ctx, records); err != nil {
		l.Error().Err(err).Int("records", len(records)).Msg("failed to relay bucket notification")
	}
}

func (ks *KafkaNotificationSource) filter(records []domain.ObjectRecord) []domain.ObjectRecord {
	out := records[:0]
	for _, r := range records {
		if ks.cfg.BucketFilter != "" && r.Bucket != ks.cfg.BucketFilter {
			continue
		}
		if len(ks.cfg.EventNameFilters) > 0 && !slices.Contains(ks.cfg.EventNameFilters, r.EventName) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (ks *KafkaNotificationSource) commit(msg *kafka.Message) {
	if _, err := ks.consumer.CommitMessage(msg); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("failed to commit kafka offset")
	}
}

// Close waits for the consume loop to drain, then closes the Kafka client.
// ctx passed to Start must already be cancelled.
func (ks *KafkaNotificationSource) Close() error {
	if ks.started {
		<-ks.doneCh
	}
	if err := ks.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
