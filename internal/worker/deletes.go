package worker

import (
	"context"
	"fmt"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// keyRequest ties a requested object key to the message that asked for it.
type keyRequest struct {
	MessageID string
	Key       string
}

// bulkDelete removes every requested key with one DeleteObjects call and
// records failures on c. Each per-key error fails every message that
// requested that key; a call-level error fails all of them. It returns the
// keys that were removed.
func bulkDelete(ctx context.Context, store storage.Storage, bucket string, reqs []keyRequest, c *batch.Collector) []string {
	if len(reqs) == 0 {
		return nil
	}
	l := pkglog.Ctx(ctx)

	byKey := make(map[string][]string)
	var keys []string
	for _, r := range reqs {
		if _, ok := byKey[r.Key]; !ok {
			keys = append(keys, r.Key)
		}
		byKey[r.Key] = append(byKey[r.Key], r.MessageID)
	}

	delErrs, err := store.DeleteObjects(ctx, bucket, keys)
	if err != nil {
		l.Error().Err(err).Int("keys", len(keys)).Msg("bulk delete failed")
		for _, r := range reqs {
			c.Fail(r.MessageID)
		}
		return nil
	}

	failed := make(map[string]struct{}, len(delErrs))
	for _, de := range delErrs {
		ids, ok := byKey[de.Key]
		if !ok {
			l.Warn().
				Str(pkglog.FieldKey, de.Key).
				Str("code", de.Code).
				Str("reason", de.Message).
				Msg("delete error for a key that was not requested")
			continue
		}
		l.Error().
			Str(pkglog.FieldKey, de.Key).
			Str("code", de.Code).
			Str("reason", de.Message).
			Msg("object could not be deleted")
		failed[de.Key] = struct{}{}
		for _, id := range ids {
			c.Fail(id)
		}
	}

	var removed []string
	for _, k := range keys {
		if _, ok := failed[k]; !ok {
			removed = append(removed, k)
		}
	}

	l.Info().
		Str(pkglog.FieldBucket, bucket).
		Int("removed", len(removed)).
		Int(pkglog.FieldFailed, len(failed)).
		Msg("bulk delete complete")
	return removed
}

// parseEach decodes every message with parse. Messages that do not parse
// are recorded on c.
func parseEach(ctx context.Context, msgs []batch.Message, c *batch.Collector, parse func(body []byte) (string, error)) []keyRequest {
	reqs := make([]keyRequest, 0, len(msgs))
	for _, msg := range msgs {
		key, err := parse([]byte(msg.Body))
		if err != nil {
			itemCtx := batch.ItemContext(ctx, msg)
			l := pkglog.Ctx(itemCtx)
			l.Error().Err(fmt.Errorf("parse message: %w", err)).Msg("message failed, leaving it for redelivery")
			c.Fail(msg.ID)
			continue
		}
		reqs = append(reqs, keyRequest{MessageID: msg.ID, Key: key})
	}
	return reqs
}
