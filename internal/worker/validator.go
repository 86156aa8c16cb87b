// Package worker holds the queue-driven workers of the upload lifecycle.
// Every worker exposes a batch.Handler; the runtime decides whether it is
// driven by Lambda or by the long-poll loop.
package worker

import (
	"context"
	"fmt"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/queue"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/scanner"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/webhook"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// ObjectScanner scans one stored object. rawKey is the key as delivered.
type ObjectScanner interface {
	Scan(ctx context.Context, bucket, rawKey string) (scanner.Report, error)
}

// Validator scans new uploads, reports the verdict to the webhook and asks
// for infected files to be removed.
type Validator struct {
	scanner       ObjectScanner
	notifier      *webhook.Notifier
	infected      queue.Publisher
	defaultBucket string
}

// NewValidator creates a Validator. defaultBucket is used for events that do
// not name their bucket.
func NewValidator(s ObjectScanner, n *webhook.Notifier, infected queue.Publisher, defaultBucket string) *Validator {
	return &Validator{
		scanner:       s,
		notifier:      n,
		infected:      infected,
		defaultBucket: defaultBucket,
	}
}

// Handle processes a batch of upload events. The signing secret is fetched
// once per batch; failing to get it fails the whole batch.
func (v *Validator) Handle(ctx context.Context, msgs []batch.Message) (batch.Response, error) {
	sess, err := v.notifier.Session(ctx)
	if err != nil {
		return batch.Response{}, fmt.Errorf("open webhook session: %w", err)
	}

	return batch.EachItem(ctx, msgs, func(ctx context.Context, msg batch.Message) error {
		evts, err := domain.ParseUploadEvents([]byte(msg.Body))
		if err != nil {
			return err
		}
		for _, evt := range evts {
			if err := v.validate(ctx, sess, evt); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func (v *Validator) validate(ctx context.Context, sess *webhook.Session, evt domain.UploadEvent) error {
	bucket := evt.Bucket
	if bucket == "" {
		bucket = v.defaultBucket
	}

	rep, err := v.scanner.Scan(ctx, bucket, evt.Key)
	if err != nil {
		return fmt.Errorf("scan %s: %w", evt.Key, err)
	}

	data := domain.NewFileValidated(rep.Bucket, rep.Key, rep.Result)
	if err := sess.Notify(ctx, webhook.FileValidated(data)); err != nil {
		return fmt.Errorf("notify validation of %s: %w", rep.Key, err)
	}

	if !rep.Result.Infected {
		return nil
	}

	if err := queue.SendJSON(ctx, v.infected, domain.QuarantineRemoval{S3Key: rep.Key}); err != nil {
		return fmt.Errorf("queue removal of %s: %w", rep.Key, err)
	}

	l := pkglog.Ctx(ctx)
	l.Warn().Str(pkglog.FieldKey, rep.Key).Str("virus", rep.Result.Virus).Msg("infected upload queued for removal")
	return nil
}
