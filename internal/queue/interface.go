package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// OutboundMessage is one entry of a batched send. ID only has to be unique
// within the batch; it is how the queue reports per-entry failures.
type OutboundMessage struct {
	ID   string
	Body string
}

// Publisher sends messages to a single queue.
type Publisher interface {
	// SendBatch sends all messages and returns the IDs of the entries the
	// queue did not accept. A non-nil error means no entry can be assumed sent.
	SendBatch(ctx context.Context, msgs []OutboundMessage) (failedIDs []string, err error)

	// Send sends a single message body.
	Send(ctx context.Context, body string) error
}

// SendJSON marshals v and sends it as one message.
func SendJSON(ctx context.Context, p Publisher, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.Send(ctx, string(body))
}
