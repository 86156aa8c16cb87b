package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/webhook"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// DeletionNotifier reports objects removed by the bucket lifecycle rule.
type DeletionNotifier struct {
	notifier *webhook.Notifier
	now      func() time.Time
}

func NewDeletionNotifier(n *webhook.Notifier) *DeletionNotifier {
	return &DeletionNotifier{notifier: n, now: time.Now}
}

// Handle sends one file:deleted notification for the whole batch. Any
// error fails the batch.
func (d *DeletionNotifier) Handle(ctx context.Context, msgs []batch.Message) (batch.Response, error) {
	return batch.WholeBatch(ctx, msgs, func(ctx context.Context, msgs []batch.Message) error {
		var keys []string
		for _, msg := range msgs {
			evts, err := domain.ParseDeleteEvents([]byte(msg.Body))
			if err != nil {
				return fmt.Errorf("parse message %s: %w", msg.ID, err)
			}
			for _, evt := range evts {
				key, err := domain.DecodeKey(evt.Key)
				if err != nil {
					return fmt.Errorf("message %s: %w", msg.ID, err)
				}
				keys = append(keys, key)
			}
		}

		if len(keys) == 0 {
			return nil
		}

		evt := webhook.FileDeleted(domain.FileDeleted{
			DeleteBatch: domain.DeleteBatch{Keys: keys, DeletedAt: d.now().UTC()},
			Reason:      domain.DeleteReasonExpired,
		})
		if err := d.notifier.Notify(ctx, evt); err != nil {
			return fmt.Errorf("notify deletion of %d files: %w", len(keys), err)
		}

		l := pkglog.Ctx(ctx)
		l.Info().Int("keys", len(keys)).Msg("expired files reported")
		return nil
	})
}
