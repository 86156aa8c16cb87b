// Package batch is the consumer side of the queue contract: a worker gets a
// batch of messages and reports which of them failed, by delivery ID, so the
// queue redelivers exactly those. Escalation to a dead-letter queue after the
// maximum receive count is done by the queue, never here.
package batch

import (
	"context"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// Message is one delivered queue message.
type Message struct {
	ID            string // delivery-tracking ID reported back on failure
	ReceiptHandle string
	Body          string
	ReceiveCount  int
}

// ItemFailure names a message the queue must redeliver.
type ItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// Response is returned from every invocation. Messages not listed are
// acknowledged.
type Response struct {
	BatchItemFailures []ItemFailure `json:"batchItemFailures"`
}

// Failed returns the set of failed message IDs.
func (r Response) Failed() map[string]struct{} {
	out := make(map[string]struct{}, len(r.BatchItemFailures))
	for _, f := range r.BatchItemFailures {
		out[f.ItemIdentifier] = struct{}{}
	}
	return out
}

// Handler processes one batch. A non-nil error fails the whole batch and
// the queue redelivers every message in it.
type Handler func(ctx context.Context, msgs []Message) (Response, error)

// Collector accumulates per-item failures without duplicates.
type Collector struct {
	seen     map[string]struct{}
	failures []ItemFailure
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

// Fail records id as failed. Recording the same id twice is a no-op.
func (c *Collector) Fail(id string) {
	if _, ok := c.seen[id]; ok {
		return
	}
	c.seen[id] = struct{}{}
	c.failures = append(c.failures, ItemFailure{ItemIdentifier: id})
}

// Len returns the number of recorded failures.
func (c *Collector) Len() int { return len(c.failures) }

// Response returns the collected failures.
func (c *Collector) Response() Response {
	out := make([]ItemFailure, len(c.failures))
	copy(out, c.failures)
	return Response{BatchItemFailures: out}
}

// EachItem runs fn for every message in order. An error from fn fails only
// that message; siblings are still processed. fn receives a context whose
// logger carries the message ID.
func EachItem(ctx context.Context, msgs []Message, fn func(ctx context.Context, msg Message) error) Response {
	c := NewCollector()
	for _, msg := range msgs {
		itemCtx := ItemContext(ctx, msg)
		if err := fn(itemCtx, msg); err != nil {
			l := pkglog.Ctx(itemCtx)
			l.Error().Err(err).Msg("message failed, leaving it for redelivery")
			c.Fail(msg.ID)
		}
	}
	return c.Response()
}

// WholeBatch runs fn once for the full batch. Any error is returned as a
// batch-wide failure.
func WholeBatch(ctx context.Context, msgs []Message, fn func(ctx context.Context, msgs []Message) error) (Response, error) {
	if err := fn(ctx, msgs); err != nil {
		return Response{}, err
	}
	return Response{BatchItemFailures: []ItemFailure{}}, nil
}

// ItemContext returns ctx with a logger scoped to msg.
func ItemContext(ctx context.Context, msg Message) context.Context {
	l := pkglog.Ctx(ctx).With().
		Str(pkglog.FieldMessageID, msg.ID).
		Int(pkglog.FieldReceiveCount, msg.ReceiveCount).
		Logger()
	return pkglog.WithLogger(ctx, l)
}

// FromSQSEvent converts a Lambda SQS event into messages.
func FromSQSEvent(ev events.SQSEvent) []Message {
	msgs := make([]Message, 0, len(ev.Records))
	for _, rec := range ev.Records {
		count, _ := strconv.Atoi(rec.Attributes["ApproximateReceiveCount"])
		msgs = append(msgs, Message{
			ID:            rec.MessageId,
			ReceiptHandle: rec.ReceiptHandle,
			Body:          rec.Body,
			ReceiveCount:  count,
		})
	}
	return msgs
}

// ToSQSEventResponse converts a Response into the Lambda partial batch response.
func ToSQSEventResponse(r Response) events.SQSEventResponse {
	out := events.SQSEventResponse{
		BatchItemFailures: make([]events.SQSBatchItemFailure, 0, len(r.BatchItemFailures)),
	}
	for _, f := range r.BatchItemFailures {
		out.BatchItemFailures = append(out.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: f.ItemIdentifier})
	}
	return out
}

// LambdaHandler adapts h to the signature expected by lambda.Start.
func LambdaHandler(h Handler) func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		resp, err := h(ctx, FromSQSEvent(ev))
		if err != nil {
			return events.SQSEventResponse{}, err
		}
		return ToSQSEventResponse(resp), nil
	}
}
