package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/queue"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/retry"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// DefaultRelayAttempts bounds how often a relay tries to publish a batch.
const DefaultRelayAttempts = 4

// Relay turns bucket notifications into normalized events on a queue.
type Relay struct {
	publisher queue.Publisher
	policy    retry.Policy
	toBody    func(rec domain.ObjectRecord) any
}

// NewPutRelay relays uploads as UploadEvents.
func NewPutRelay(p queue.Publisher, policy retry.Policy) *Relay {
	return newRelay(p, policy, func(rec domain.ObjectRecord) any {
		return domain.UploadEvent{Key: rec.Key, Bucket: rec.Bucket, EventType: domain.EventObjectCreated}
	})
}

// NewDeleteRelay relays removals as DeleteEvents.
func NewDeleteRelay(p queue.Publisher, policy retry.Policy) *Relay {
	return newRelay(p, policy, func(rec domain.ObjectRecord) any {
		return domain.DeleteEvent{Key: rec.Key, Bucket: rec.Bucket, EventType: domain.EventObjectRemoved}
	})
}

func newRelay(p queue.Publisher, policy retry.Policy, toBody func(domain.ObjectRecord) any) *Relay {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRelayAttempts
	}
	if policy.Backoff <= 0 {
		policy.Backoff = retry.DefaultBackoff
	}
	return &Relay{publisher: p, policy: policy, toBody: toBody}
}

// HandleS3Event is the Lambda entry point.
func (r *Relay) HandleS3Event(ctx context.Context, ev events.S3Event) error {
	return r.Relay(ctx, domain.FromS3Event(ev))
}

// Relay publishes one event per record. Records still unsent after the last
// attempt are reported with a *retry.UnsentError.
func (r *Relay) Relay(ctx context.Context, recs []domain.ObjectRecord) error {
	if len(recs) == 0 {
		return nil
	}

	bodies := make([]string, 0, len(recs))
	for _, rec := range recs {
		b, err := json.Marshal(r.toBody(rec))
		if err != nil {
			return fmt.Errorf("marshal event for %s: %w", rec.Key, err)
		}
		bodies = append(bodies, string(b))
	}

	err := retry.SendWithNarrowing(ctx, bodies, r.policy, func(ctx context.Context, entries []retry.Entry[string]) ([]string, error) {
		msgs := make([]queue.OutboundMessage, len(entries))
		for i, e := range entries {
			msgs[i] = queue.OutboundMessage{ID: e.ID, Body: e.Item}
		}
		return r.publisher.SendBatch(ctx, msgs)
	})
	if err != nil {
		return err
	}

	l := pkglog.Ctx(ctx)
	l.Info().Int("events", len(bodies)).Msg("notifications relayed")
	return nil
}
