package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	attempts [][]string
	fail     func(attempt int, entries []Entry[string]) ([]string, error)
}

func (r *recorder) send(_ context.Context, entries []Entry[string]) ([]string, error) {
	items := make([]string, len(entries))
	for i, e := range entries {
		items[i] = e.Item
	}
	r.attempts = append(r.attempts, items)
	return r.fail(len(r.attempts), entries)
}

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestSendWithNarrowingSucceedsFirstTry(t *testing.T) {
	r := &recorder{fail: func(int, []Entry[string]) ([]string, error) { return nil, nil }}

	err := SendWithNarrowing(context.Background(), []string{"a", "b"}, Policy{MaxAttempts: 4}, r.send)
	require.NoError(t, err)
	assert.Len(t, r.attempts, 1)
}

func TestSendWithNarrowingRetriesOnlyFailedSubset(t *testing.T) {
	r := &recorder{fail: func(attempt int, entries []Entry[string]) ([]string, error) {
		if attempt == 1 {
			return []string{entries[1].ID, entries[3].ID}, nil
		}
		return nil, nil
	}}

	err := SendWithNarrowing(context.Background(), []string{"k0", "k1", "k2", "k3", "k4"},
		Policy{MaxAttempts: 4, NewID: counter()}, r.send)
	require.NoError(t, err)

	require.Len(t, r.attempts, 2)
	assert.Equal(t, []string{"k1", "k3"}, r.attempts[1])
}

func TestSendWithNarrowingExhaustsAttempts(t *testing.T) {
	r := &recorder{fail: func(attempt int, entries []Entry[string]) ([]string, error) {
		if attempt == 1 {
			return []string{entries[0].ID, entries[4].ID}, nil
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		return ids, nil
	}}

	err := SendWithNarrowing(context.Background(), []string{"a", "b", "c", "d", "e"},
		Policy{MaxAttempts: 3}, r.send)

	var unsent *UnsentError
	require.ErrorAs(t, err, &unsent)
	assert.Equal(t, 2, unsent.Count)
	assert.Equal(t, 3, unsent.Attempts)
	assert.Contains(t, err.Error(), "failed to send 2 messages after 3 attempts")
	assert.Len(t, r.attempts, 3)
	assert.Equal(t, []string{"a", "e"}, r.attempts[2])
}

func TestSendWithNarrowingDuplicateContentRetriedIndependently(t *testing.T) {
	r := &recorder{fail: func(attempt int, entries []Entry[string]) ([]string, error) {
		if attempt == 1 {
			return []string{entries[0].ID, entries[1].ID}, nil
		}
		return nil, nil
	}}

	err := SendWithNarrowing(context.Background(), []string{"same", "same", "other"},
		Policy{MaxAttempts: 2}, r.send)
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "same"}, r.attempts[1])
}

func TestSendWithNarrowingFreshIDsPerAttempt(t *testing.T) {
	var seen [][]string
	send := func(_ context.Context, entries []Entry[string]) ([]string, error) {
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		seen = append(seen, ids)
		if len(seen) == 1 {
			return ids, nil
		}
		return nil, nil
	}

	require.NoError(t, SendWithNarrowing(context.Background(), []string{"x"}, Policy{MaxAttempts: 2}, send))
	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0][0], seen[1][0])
}

func TestSendWithNarrowingCallErrorRetriesEverything(t *testing.T) {
	r := &recorder{fail: func(attempt int, _ []Entry[string]) ([]string, error) {
		if attempt == 1 {
			return nil, errors.New("throttled")
		}
		return nil, nil
	}}

	require.NoError(t, SendWithNarrowing(context.Background(), []string{"a", "b"}, Policy{MaxAttempts: 2}, r.send))
	assert.Equal(t, []string{"a", "b"}, r.attempts[1])
}

func TestSendWithNarrowingWaitsBackoff(t *testing.T) {
	r := &recorder{fail: func(attempt int, entries []Entry[string]) ([]string, error) {
		if attempt == 1 {
			return []string{entries[0].ID}, nil
		}
		return nil, nil
	}}

	start := time.Now()
	require.NoError(t, SendWithNarrowing(context.Background(), []string{"a"},
		Policy{MaxAttempts: 2, Backoff: 20 * time.Millisecond}, r.send))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSendWithNarrowingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder{fail: func(_ int, entries []Entry[string]) ([]string, error) {
		cancel()
		return []string{entries[0].ID}, nil
	}}

	err := SendWithNarrowing(ctx, []string{"a"}, Policy{MaxAttempts: 4, Backoff: time.Minute}, r.send)
	var unsent *UnsentError
	require.ErrorAs(t, err, &unsent)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, r.attempts, 1)
}

func TestSendWithNarrowingUnknownFailedIDFailsAttempt(t *testing.T) {
	r := &recorder{fail: func(attempt int, _ []Entry[string]) ([]string, error) {
		if attempt == 1 {
			return []string{"not-sent"}, nil
		}
		return nil, nil
	}}

	require.NoError(t, SendWithNarrowing(context.Background(), []string{"a", "b"}, Policy{MaxAttempts: 2}, r.send))
	require.Len(t, r.attempts, 2)
	assert.Equal(t, []string{"a", "b"}, r.attempts[1])
}

func TestSendWithNarrowingUnknownFailedIDIsNotSuccess(t *testing.T) {
	r := &recorder{fail: func(int, []Entry[string]) ([]string, error) {
		return []string{"not-sent"}, nil
	}}

	err := SendWithNarrowing(context.Background(), []string{"a"}, Policy{MaxAttempts: 1}, r.send)

	var unsent *UnsentError
	require.ErrorAs(t, err, &unsent)
	assert.Equal(t, 1, unsent.Count)

	var unknown *UnknownIDsError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"not-sent"}, unknown.IDs)
}
