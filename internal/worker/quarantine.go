package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/webhook"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// QuarantineRemover deletes uploads the validator found infected and tells
// the webhook they are gone.
type QuarantineRemover struct {
	store    storage.Storage
	bucket   string
	notifier *webhook.Notifier
	now      func() time.Time
}

func NewQuarantineRemover(store storage.Storage, bucket string, n *webhook.Notifier) *QuarantineRemover {
	return &QuarantineRemover{store: store, bucket: bucket, notifier: n, now: time.Now}
}

// Handle removes the objects of a batch. Per-key failures are reported per
// message; a failed notification fails the whole batch.
func (q *QuarantineRemover) Handle(ctx context.Context, msgs []batch.Message) (batch.Response, error) {
	c := batch.NewCollector()
	reqs := parseEach(ctx, msgs, c, parseQuarantineRemoval)

	removed := bulkDelete(ctx, q.store, q.bucket, reqs, c)
	if len(removed) == 0 {
		return c.Response(), nil
	}

	evt := webhook.FileDeleted(domain.FileDeleted{
		DeleteBatch: domain.DeleteBatch{Keys: removed, DeletedAt: q.now().UTC()},
		Reason:      domain.DeleteReasonInfected,
	})
	if err := q.notifier.Notify(ctx, evt); err != nil {
		return batch.Response{}, fmt.Errorf("notify removal of %d infected files: %w", len(removed), err)
	}
	return c.Response(), nil
}

func parseQuarantineRemoval(body []byte) (string, error) {
	var req domain.QuarantineRemoval
	if err := json.Unmarshal(body, &req); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return req.S3Key, nil
}
