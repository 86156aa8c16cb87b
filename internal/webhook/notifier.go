// Package webhook delivers signed lifecycle notifications to the receiving
// system over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
)

// SignatureHeader carries the shared signing secret.
const SignatureHeader = "x-signature"

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// SecretSource returns the current signing secret.
type SecretSource interface {
	Signature(ctx context.Context) (string, error)
}

// Event is one notification. Data is marshalled as-is.
type Event struct {
	Type string
	Data any
}

// FileValidated builds a file:validated event.
func FileValidated(data domain.FileValidated) Event {
	return Event{Type: domain.WebhookFileValidated, Data: data}
}

// FileDeleted builds a file:deleted event.
func FileDeleted(data domain.FileDeleted) Event {
	return Event{Type: domain.WebhookFileDeleted, Data: data}
}

type envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NotifyError is returned when a notification was not accepted. StatusCode
// is zero when the request never got a response.
type NotifyError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *NotifyError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("webhook request failed: %v", e.Err)
	}
	return fmt.Sprintf("webhook rejected notification: HTTP %d: %s", e.StatusCode, e.Status)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Config configures a Notifier.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Notifier sends events to a single endpoint.
type Notifier struct {
	url     string
	client  *http.Client
	secrets SecretSource
	now     func() time.Time
}

// NewNotifier creates a notifier. A zero Timeout defaults to 10s.
func NewNotifier(cfg Config, secrets SecretSource) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		secrets: secrets,
		now:     time.Now,
	}
}

// Session holds the secret fetched for one invocation.
type Session struct {
	n         *Notifier
	signature string
}

// Session fetches the current secret. Errors from the secret store are
// returned unchanged so callers can tell a misconfigured secret apart.
func (n *Notifier) Session(ctx context.Context) (*Session, error) {
	sig, err := n.secrets.Signature(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{n: n, signature: sig}, nil
}

// Notify opens a session and sends a single event.
func (n *Notifier) Notify(ctx context.Context, evt Event) error {
	s, err := n.Session(ctx)
	if err != nil {
		return err
	}
	return s.Notify(ctx, evt)
}

// Notify sends evt. Any non-2xx response is a failure.
func (s *Session) Notify(ctx context.Context, evt Event) error {
	l := pkglog.Ctx(ctx)

	body, err := json.Marshal(envelope{
		Type:      evt.Type,
		Data:      evt.Data,
		Timestamp: s.n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, s.signature)

	resp, err := s.n.client.Do(req)
	if err != nil {
		return &NotifyError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		l.Error().
			Str("event", evt.Type).
			Int(pkglog.FieldStatus, resp.StatusCode).
			Str("status_text", http.StatusText(resp.StatusCode)).
			Str("body", string(respBody)).
			Msg("webhook rejected notification")
		return &NotifyError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(respBody),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	l.Debug().Str("event", evt.Type).Int(pkglog.FieldStatus, resp.StatusCode).Msg("webhook delivered")
	return nil
}
