package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// MaxBatchEntries is the SQS limit of entries per batch call.
const MaxBatchEntries = 10

// SQSAPI is the subset of the SQS client used by this package.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// SQSPublisher implements Publisher on an SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// SendBatch sends msgs in chunks of MaxBatchEntries. Entries of a chunk
// whose call fails are reported as failed; the error is returned only when
// every chunk failed.
func (p *SQSPublisher) SendBatch(ctx context.Context, msgs []OutboundMessage) ([]string, error) {
	l := pkglog.Ctx(ctx)

	var (
		failed    []string
		lastErr   error
		chunkErrs int
		chunks    int
	)

	for start := 0; start < len(msgs); start += MaxBatchEntries {
		end := min(start+MaxBatchEntries, len(msgs))
		chunk := msgs[start:end]
		chunks++

		entries := make([]types.SendMessageBatchRequestEntry, 0, len(chunk))
		for _, m := range chunk {
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(m.ID),
				MessageBody: aws.String(m.Body),
			})
		}

		out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  entries,
		})
		if err != nil {
			l.Error().Err(err).Str(pkglog.FieldQueue, p.queueURL).Int("entries", len(chunk)).Msg("send message batch failed")
			lastErr = err
			chunkErrs++
			for _, m := range chunk {
				failed = append(failed, m.ID)
			}
			continue
		}

		for _, f := range out.Failed {
			l.Warn().
				Str("entry_id", aws.ToString(f.Id)).
				Str("code", aws.ToString(f.Code)).
				Str("reason", aws.ToString(f.Message)).
				Msg("queue rejected batch entry")
			failed = append(failed, aws.ToString(f.Id))
		}
	}

	if chunks > 0 && chunkErrs == chunks {
		return nil, fmt.Errorf("send message batch to %s: %w", p.queueURL, lastErr)
	}
	return failed, nil
}

// Send sends a single message body.
func (p *SQSPublisher) Send(ctx context.Context, body string) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("send message to %s: %w", p.queueURL, err)
	}
	return nil
}
