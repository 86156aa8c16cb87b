package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/queue"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/webhook"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

type staticSecret struct {
	sig string
	err error
}

func (s staticSecret) Signature(context.Context) (string, error) { return s.sig, s.err }

type delivery struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// receiver is a webhook endpoint that records every delivery.
type receiver struct {
	mu     sync.Mutex
	status int
	got    []delivery
	srv    *httptest.Server
}

func newReceiver(t *testing.T) *receiver {
	t.Helper()
	r := &receiver{status: http.StatusOK}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		var d delivery
		assert.NoError(t, json.Unmarshal(raw, &d))

		r.mu.Lock()
		r.got = append(r.got, d)
		status := r.status
		r.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *receiver) setStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
}

func (r *receiver) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}

func (r *receiver) notifier() *webhook.Notifier {
	return webhook.NewNotifier(webhook.Config{URL: r.srv.URL}, staticSecret{sig: "test-signature"})
}

// fakePublisher records sends. failOn reports an entry as failed given the
// number of the attempt it was sent in.
type fakePublisher struct {
	attempts [][]queue.OutboundMessage
	failOn   func(attempt int, msg queue.OutboundMessage) bool
	callErr  error
	sent     []string
	sendErr  error
}

func (p *fakePublisher) SendBatch(_ context.Context, msgs []queue.OutboundMessage) ([]string, error) {
	p.attempts = append(p.attempts, msgs)
	if p.callErr != nil {
		return nil, p.callErr
	}
	var failed []string
	for _, m := range msgs {
		if p.failOn != nil && p.failOn(len(p.attempts), m) {
			failed = append(failed, m.ID)
		}
	}
	return failed, nil
}

func (p *fakePublisher) Send(_ context.Context, body string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, body)
	return nil
}

// failingStore fails every DeleteObjects call.
type failingStore struct {
	storage.Storage
	calls int
}

func (s *failingStore) DeleteObjects(context.Context, string, []string) ([]storage.DeleteError, error) {
	s.calls++
	return nil, errors.New("access denied")
}

// scriptedStore answers every DeleteObjects call with errs.
type scriptedStore struct {
	storage.Storage
	errs      []storage.DeleteError
	requested []string
}

func (s *scriptedStore) DeleteObjects(_ context.Context, _ string, keys []string) ([]storage.DeleteError, error) {
	s.requested = append(s.requested, keys...)
	return s.errs, nil
}

func newStore(t *testing.T, keys ...string) *storage.LocalStorage {
	t.Helper()
	st, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), Bucket: "uploads"})
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, st.Write(context.Background(), "", k, strings.NewReader(k), int64(len(k)), ""))
	}
	return st
}

func exists(t *testing.T, st storage.Storage, key string) bool {
	t.Helper()
	ok, err := st.Exists(context.Background(), "", key)
	require.NoError(t, err)
	return ok
}

func msg(id, body string) batch.Message {
	return batch.Message{ID: id, Body: body, ReceiveCount: 1}
}

func failedIDs(r batch.Response) []string {
	out := make([]string, 0, len(r.BatchItemFailures))
	for _, f := range r.BatchItemFailures {
		out = append(out, f.ItemIdentifier)
	}
	return out
}
