// Package retry implements bounded retry of batched sends where each attempt
// resends only the entries the previous attempt reported as failed.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// DefaultBackoff is the fixed pause between attempts.
const DefaultBackoff = 2 * time.Second

// Entry is one item tagged with the ID assigned for a single attempt.
type Entry[T any] struct {
	ID   string
	Item T
}

// SendFunc publishes entries and returns the IDs of those that failed.
// A returned error means the call as a whole failed; every entry of that
// attempt is then treated as failed.
type SendFunc[T any] func(ctx context.Context, entries []Entry[T]) (failedIDs []string, err error)

// Policy configures SendWithNarrowing.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// NewID assigns entry IDs; defaults to random UUIDs.
	NewID func() string
}

// UnsentError is returned when items are still unsent after the last attempt.
// Those items are lost from this path.
type UnsentError struct {
	Count    int
	Attempts int
	Last     error
}

func (e *UnsentError) Error() string {
	msg := fmt.Sprintf("failed to send %d messages after %d attempts", e.Count, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *UnsentError) Unwrap() error { return e.Last }

// SendWithNarrowing sends items, retrying only the failed subset with a fixed
// backoff. Each attempt tags every remaining item with a fresh ID and the
// failed subset is selected by those IDs, so items with identical content
// are retried independently.
func SendWithNarrowing[T any](ctx context.Context, items []T, p Policy, send SendFunc[T]) error {
	if len(items) == 0 {
		return nil
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.NewID == nil {
		p.NewID = func() string { return uuid.New().String() }
	}

	l := pkglog.Ctx(ctx)

	var (
		remaining = items
		attempt   int
		lastErr   error
	)

	operation := func() error {
		attempt++
		entries := make([]Entry[T], len(remaining))
		for i, item := range remaining {
			entries[i] = Entry[T]{ID: p.NewID(), Item: item}
		}

		failedIDs, err := send(ctx, entries)
		failed, err := narrow(entries, failedIDs, err)
		remaining = failed
		lastErr = err
		if len(failed) == 0 {
			return nil
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%d of %d entries failed", len(failed), len(entries))
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(p.MaxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		l.Warn().Err(err).
			Int("failed", len(remaining)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("batch send partially failed, retrying failed entries")
	})
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		lastErr = ctxErr
	}
	l.Error().Err(lastErr).
		Int("unsent", len(remaining)).
		Int("attempts", attempt).
		Msg("giving up on batch send")
	return &UnsentError{Count: len(remaining), Attempts: attempt, Last: lastErr}
}

// narrow returns the items of entries that failed. A call error fails every
// entry, and so does a failed ID that matches no entry, since the outcome of
// the attempt is then unknown.
func narrow[T any](entries []Entry[T], failedIDs []string, callErr error) ([]T, error) {
	all := func() []T {
		out := make([]T, len(entries))
		for i, e := range entries {
			out[i] = e.Item
		}
		return out
	}

	if callErr != nil {
		return all(), callErr
	}
	if len(failedIDs) == 0 {
		return nil, nil
	}

	byID := make(map[string]T, len(entries))
	for _, e := range entries {
		byID[e.ID] = e.Item
	}

	seen := make(map[string]struct{}, len(failedIDs))
	var unknown []string
	for _, id := range failedIDs {
		if _, ok := byID[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		seen[id] = struct{}{}
	}
	if len(unknown) > 0 {
		return all(), &UnknownIDsError{IDs: unknown}
	}

	var out []T
	for _, e := range entries {
		if _, ok := seen[e.ID]; ok {
			out = append(out, e.Item)
		}
	}
	return out, nil
}

// UnknownIDsError is reported when a send names failed entries that were not
// part of the attempt.
type UnknownIDsError struct {
	IDs []string
}

func (e *UnknownIDsError) Error() string {
	return fmt.Sprintf("send reported %d unknown entry IDs: %s", len(e.IDs), strings.Join(e.IDs, ", "))
}
