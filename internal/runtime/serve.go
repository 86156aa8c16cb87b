package runtime

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"golang.org/x/sync/errgroup"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/config"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/queue"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/worker"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// ServeBatch drives a queue consumer. In lambda mode it never returns. In
// poll mode it returns after SIGINT or SIGTERM once the in-flight batch is
// finished.
func ServeBatch(d *Dependencies, w config.Worker, h batch.Handler) error {
	h = withWorker(w, h)

	cfg := d.Config
	if cfg.Runtime.Mode != config.ModePoll {
		lambda.Start(batch.LambdaHandler(h))
		return nil
	}

	poller := queue.NewSQSPoller(d.SQS, queue.PollerConfig{
		QueueURL:          cfg.Queues.Source,
		BatchSize:         cfg.Runtime.BatchSize,
		WaitTime:          cfg.Runtime.WaitTime,
		VisibilityTimeout: cfg.Runtime.VisibilityTimeout,
		BatchTimeout:      cfg.Runtime.BatchTimeout,
	}, h)

	return runPoll(string(w), cfg.Runtime.HealthAddr, poller.Run)
}

// ServeRelay drives a relay. Lambda mode consumes S3 events, poll mode
// consumes MinIO notifications from Kafka.
func ServeRelay(d *Dependencies, w config.Worker, r *worker.Relay, eventNames []string) error {
	cfg := d.Config
	if cfg.Runtime.Mode != config.ModePoll {
		lambda.Start(func(ctx context.Context, ev events.S3Event) error {
			return r.HandleS3Event(pkglog.WithFields(ctx, pkglog.FieldWorker, string(w)), ev)
		})
		return nil
	}

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = string(w)
	}
	if len(cfg.Kafka.EventNameFilters) > 0 {
		eventNames = cfg.Kafka.EventNameFilters
	}

	src, err := queue.NewKafkaNotificationSource(queue.KafkaSourceConfig{
		Brokers:          cfg.Kafka.Brokers,
		Topic:            cfg.Kafka.Topic,
		GroupID:          groupID,
		BucketFilter:     cfg.Storage.S3.Bucket,
		EventNameFilters: eventNames,
	}, func(ctx context.Context, recs []domain.ObjectRecord) error {
		return r.Relay(pkglog.WithFields(ctx, pkglog.FieldWorker, string(w)), recs)
	})
	if err != nil {
		return err
	}

	runErr := runPoll(string(w), cfg.Runtime.HealthAddr, src.Run)
	if err := src.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// runPoll runs loop and the health server until a shutdown signal arrives
// or either of them fails.
func runPoll(name, healthAddr string, loop func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := pkglog.L()
	l.Info().Str(pkglog.FieldWorker, name).Msg("poll runtime starting")

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop(gCtx)
	})
	g.Go(func() error {
		return serveHealth(gCtx, healthAddr, name)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	l.Info().Str(pkglog.FieldWorker, name).Msg("shutdown complete")
	return nil
}

func withWorker(w config.Worker, h batch.Handler) batch.Handler {
	return func(ctx context.Context, msgs []batch.Message) (batch.Response, error) {
		ctx = pkglog.WithFields(ctx, pkglog.FieldWorker, string(w))
		l := pkglog.Ctx(ctx)
		l.Debug().Int(pkglog.FieldBatchSize, len(msgs)).Msg("batch received")
		return h(ctx, msgs)
	}
}
