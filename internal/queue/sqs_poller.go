package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// PollerConfig configures an SQSPoller.
type PollerConfig struct {
	QueueURL          string
	BatchSize         int32
	WaitTime          time.Duration // long-poll wait, at most 20s
	VisibilityTimeout time.Duration // 0 keeps the queue default
	BatchTimeout      time.Duration // per-batch processing deadline, 0 for none
	ErrorBackoff      time.Duration
}

// SQSPoller long-polls a queue and feeds batches to a batch.Handler. It is
// the in-process equivalent of the Lambda event source: messages the handler
// reports as failed are left alone so they reappear after the visibility
// timeout, everything else is deleted. When the handler fails the whole batch
// nothing is deleted. Moving poison messages to the DLQ stays with the
// queue's redrive policy.
type SQSPoller struct {
	client  SQSAPI
	cfg     PollerConfig
	handler batch.Handler
	doneCh  chan struct{}
}

// NewSQSPoller creates a poller. Call Start to begin polling.
func NewSQSPoller(client SQSAPI, cfg PollerConfig, handler batch.Handler) *SQSPoller {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchEntries {
		cfg.BatchSize = MaxBatchEntries
	}
	if cfg.WaitTime <= 0 || cfg.WaitTime > 20*time.Second {
		cfg.WaitTime = 20 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	return &SQSPoller{
		client:  client,
		cfg:     cfg,
		handler: handler,
		doneCh:  make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (p *SQSPoller) Start(ctx context.Context) {
	l := pkglog.L()
	l.Info().Str(pkglog.FieldQueue, p.cfg.QueueURL).Int32(pkglog.FieldBatchSize, p.cfg.BatchSize).Msg("sqs poller started")

	go p.pollLoop(ctx)
}

// Run polls until ctx is cancelled and the in-flight batch is done.
func (p *SQSPoller) Run(ctx context.Context) error {
	p.Start(ctx)
	<-p.doneCh
	return nil
}

// Close waits for the poll loop to drain. ctx passed to Start must already
// be cancelled.
func (p *SQSPoller) Close() error {
	<-p.doneCh
	return nil
}

func (p *SQSPoller) pollLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(p.doneCh)

	// Failed polls are retried after ErrorBackoff until ctx is cancelled.
	b := backoff.WithContext(backoff.NewConstantBackOff(p.cfg.ErrorBackoff), ctx)
	onError := func(err error, wait time.Duration) {
		if errors.Is(err, context.Canceled) {
			return
		}
		l.Error().Err(err).Str(pkglog.FieldQueue, p.cfg.QueueURL).Dur("retry_in", wait).Msg("sqs poll failed")
	}

	for ctx.Err() == nil {
		_ = backoff.RetryNotify(func() error { return p.PollOnce(ctx) }, b, onError)
	}
	l.Info().Str(pkglog.FieldQueue, p.cfg.QueueURL).Msg("sqs poller shutting down")
}

// PollOnce receives at most one batch, hands it to the handler and deletes
// the messages that were processed successfully.
func (p *SQSPoller) PollOnce(ctx context.Context) error {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.cfg.QueueURL),
		MaxNumberOfMessages: p.cfg.BatchSize,
		WaitTimeSeconds:     int32(p.cfg.WaitTime / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	}
	if p.cfg.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(p.cfg.VisibilityTimeout / time.Second)
	}

	out, err := p.client.ReceiveMessage(ctx, input)
	if err != nil {
		return err
	}
	if len(out.Messages) == 0 {
		return nil
	}

	msgs := make([]batch.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		msgs = append(msgs, batch.Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			ReceiveCount:  count,
		})
	}

	// In-flight batches finish even after shutdown begins.
	batchCtx := context.WithoutCancel(ctx)
	if p.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(batchCtx, p.cfg.BatchTimeout)
		defer cancel()
	}

	l := pkglog.Ctx(ctx)
	resp, err := p.handler(batchCtx, msgs)
	if err != nil {
		l.Error().Err(err).Int(pkglog.FieldBatchSize, len(msgs)).Msg("batch failed, all messages will be redelivered")
		return nil
	}

	failed := resp.Failed()
	var ack []batch.Message
	for _, m := range msgs {
		if _, ok := failed[m.ID]; !ok {
			ack = append(ack, m)
		}
	}

	l.Info().
		Int(pkglog.FieldBatchSize, len(msgs)).
		Int(pkglog.FieldFailed, len(failed)).
		Msg("batch processed")

	return p.deleteMessages(context.WithoutCancel(ctx), ack)
}

func (p *SQSPoller) deleteMessages(ctx context.Context, msgs []batch.Message) error {
	l := pkglog.Ctx(ctx)
	for start := 0; start < len(msgs); start += MaxBatchEntries {
		end := min(start+MaxBatchEntries, len(msgs))

		entries := make([]types.DeleteMessageBatchRequestEntry, 0, end-start)
		for i, m := range msgs[start:end] {
			entries = append(entries, types.DeleteMessageBatchRequestEntry{
				Id:            aws.String(strconv.Itoa(i)),
				ReceiptHandle: aws.String(m.ReceiptHandle),
			})
		}

		out, err := p.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(p.cfg.QueueURL),
			Entries:  entries,
		})
		if err != nil {
			return err
		}
		for _, f := range out.Failed {
			// The message comes back after its visibility timeout and is
			// processed again.
			l.Warn().Str("entry_id", aws.ToString(f.Id)).Str("code", aws.ToString(f.Code)).Msg("failed to delete processed message")
		}
	}
	return nil
}
