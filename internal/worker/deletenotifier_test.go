package worker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
)

const lifecycleNotification = `{"Records":[{"eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"uploads"},"object":{"key":"old+report.pdf"}}}]}`

func TestDeletionNotifierSendsOneNotification(t *testing.T) {
	rcv := newReceiver(t)
	d := NewDeletionNotifier(rcv.notifier())
	d.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := d.Handle(context.Background(), []batch.Message{
		msg("m1", `{"key":"a.txt","bucket":"uploads","eventType":"s3:ObjectRemoved:Delete"}`),
		msg("m2", lifecycleNotification),
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)

	got := rcv.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, domain.WebhookFileDeleted, got[0].Type)
	assert.JSONEq(t, `{"keys":["a.txt","old report.pdf"],"deletedAt":"2024-06-01T00:00:00Z","reason":"expired"}`, string(got[0].Data))
}

func TestDeletionNotifierParseErrorFailsBatch(t *testing.T) {
	rcv := newReceiver(t)
	d := NewDeletionNotifier(rcv.notifier())

	_, err := d.Handle(context.Background(), []batch.Message{
		msg("m1", `{"key":"a.txt"}`),
		msg("m2", `garbage`),
	})
	require.Error(t, err)
	assert.Empty(t, rcv.deliveries())
}

func TestDeletionNotifierNotifyErrorFailsBatch(t *testing.T) {
	rcv := newReceiver(t)
	rcv.setStatus(http.StatusBadGateway)
	d := NewDeletionNotifier(rcv.notifier())

	_, err := d.Handle(context.Background(), []batch.Message{msg("m1", `{"key":"a.txt"}`)})
	require.Error(t, err)
}

func TestDeletionNotifierIgnoresTestEvent(t *testing.T) {
	rcv := newReceiver(t)
	d := NewDeletionNotifier(rcv.notifier())

	resp, err := d.Handle(context.Background(), []batch.Message{msg("m1", `{"Event":"s3:TestEvent","Bucket":"uploads"}`)})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, rcv.deliveries())
}
