package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
)

type fakeSQS struct {
	batches    [][]types.SendMessageBatchRequestEntry
	failIDs    map[string]bool
	batchErr   error
	sent       []string
	received   []types.Message
	deleted    []string
	receiveErr error

	// failReceives makes that many ReceiveMessage calls fail first.
	failReceives int
	receives     int
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) SendMessageBatch(_ context.Context, in *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	f.batches = append(f.batches, in.Entries)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := &sqs.SendMessageBatchOutput{}
	for _, e := range in.Entries {
		if f.failIDs[aws.ToString(e.Id)] {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{Id: e.Id, Code: aws.String("InternalError")})
		}
	}
	return out, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receives++
	if f.failReceives > 0 {
		f.failReceives--
		return nil, errors.New("throttled")
	}
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	msgs := f.received
	f.received = nil
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeSQS) DeleteMessageBatch(_ context.Context, in *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	for _, e := range in.Entries {
		f.deleted = append(f.deleted, aws.ToString(e.ReceiptHandle))
	}
	return &sqs.DeleteMessageBatchOutput{}, nil
}

func outbound(n int) []OutboundMessage {
	out := make([]OutboundMessage, n)
	for i := range out {
		out[i] = OutboundMessage{ID: fmt.Sprintf("e%d", i), Body: fmt.Sprintf(`{"key":"k%d"}`, i)}
	}
	return out
}

func TestSQSPublisherChunksAndReportsFailures(t *testing.T) {
	fake := &fakeSQS{failIDs: map[string]bool{"e3": true, "e11": true}}
	p := NewSQSPublisher(fake, "https://sqs/put-events")

	failed, err := p.SendBatch(context.Background(), outbound(12))
	require.NoError(t, err)

	require.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[0], 10)
	assert.Len(t, fake.batches[1], 2)
	assert.ElementsMatch(t, []string{"e3", "e11"}, failed)
}

func TestSQSPublisherCallError(t *testing.T) {
	p := NewSQSPublisher(&fakeSQS{batchErr: errors.New("throttled")}, "q")

	_, err := p.SendBatch(context.Background(), outbound(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSendJSON(t *testing.T) {
	fake := &fakeSQS{}
	require.NoError(t, SendJSON(context.Background(), NewSQSPublisher(fake, "q"), map[string]string{"s3Key": "bad.exe"}))
	assert.Equal(t, []string{`{"s3Key":"bad.exe"}`}, fake.sent)
}

func sqsMessage(id string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String("{}"),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestSQSPollerDeletesOnlySuccessfulMessages(t *testing.T) {
	fake := &fakeSQS{received: []types.Message{sqsMessage("a"), sqsMessage("b"), sqsMessage("c")}}

	var got []batch.Message
	p := NewSQSPoller(fake, PollerConfig{QueueURL: "q", BatchSize: 5}, func(_ context.Context, msgs []batch.Message) (batch.Response, error) {
		got = msgs
		return batch.Response{BatchItemFailures: []batch.ItemFailure{{ItemIdentifier: "b"}}}, nil
	})

	require.NoError(t, p.PollOnce(context.Background()))
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].ReceiveCount)
	assert.Equal(t, []string{"rh-a", "rh-c"}, fake.deleted)
}

func TestSQSPollerKeepsWholeBatchOnHandlerError(t *testing.T) {
	fake := &fakeSQS{received: []types.Message{sqsMessage("a"), sqsMessage("b")}}
	p := NewSQSPoller(fake, PollerConfig{QueueURL: "q"}, func(context.Context, []batch.Message) (batch.Response, error) {
		return batch.Response{}, errors.New("notify failed")
	})

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Empty(t, fake.deleted)
}

func TestSQSPollerEmptyReceive(t *testing.T) {
	called := false
	p := NewSQSPoller(&fakeSQS{}, PollerConfig{QueueURL: "q"}, func(context.Context, []batch.Message) (batch.Response, error) {
		called = true
		return batch.Response{}, nil
	})

	require.NoError(t, p.PollOnce(context.Background()))
	assert.False(t, called)
}

func TestSQSPollerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewSQSPoller(&fakeSQS{}, PollerConfig{QueueURL: "q"}, func(context.Context, []batch.Message) (batch.Response, error) {
		return batch.Response{}, nil
	})
	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Close())
}

func TestSQSPollerRetriesFailedReceives(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeSQS{failReceives: 2, received: []types.Message{sqsMessage("a")}}
	p := NewSQSPoller(fake, PollerConfig{QueueURL: "q", ErrorBackoff: time.Millisecond}, func(context.Context, []batch.Message) (batch.Response, error) {
		cancel()
		return batch.Response{}, nil
	})

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 3, fake.receives)
	assert.Equal(t, []string{"rh-a"}, fake.deleted)
}
