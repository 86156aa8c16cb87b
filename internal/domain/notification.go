package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

const s3TestEvent = "s3:TestEvent"

// envelope detects which of the accepted body shapes a message carries.
type envelope struct {
	Records json.RawMessage `json:"Records"`
	Event   string          `json:"Event"`
}

// ObjectRecord is one normalized record of an object-store notification.
// Key is exactly as delivered (URL-encoded, '+' for space).
type ObjectRecord struct {
	EventName string
	Bucket    string
	Key       string
	Size      int64
}

// ParseObjectNotification decodes an S3 or MinIO bucket notification.
// The S3 test event sent when a notification is configured yields no records.
func ParseObjectNotification(body []byte) ([]ObjectRecord, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	if env.Event == s3TestEvent {
		return nil, nil
	}
	if len(env.Records) == 0 {
		return nil, errors.New("notification has no Records")
	}

	var raw events.S3Event
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal notification records: %w", err)
	}
	return FromS3Event(raw), nil
}

// FromS3Event normalizes the records of a Lambda S3 event.
func FromS3Event(ev events.S3Event) []ObjectRecord {
	out := make([]ObjectRecord, 0, len(ev.Records))
	for _, rec := range ev.Records {
		out = append(out, ObjectRecord{
			EventName: rec.EventName,
			Bucket:    rec.S3.Bucket.Name,
			Key:       rec.S3.Object.Key,
			Size:      rec.S3.Object.Size,
		})
	}
	return out
}

// ParseUploadEvents accepts either a normalized UploadEvent or a raw bucket
// notification (the bucket may publish straight to the put-events queue) and
// returns the events the body carries.
func ParseUploadEvents(body []byte) ([]UploadEvent, error) {
	raw, err := isNotification(body)
	if err != nil {
		return nil, err
	}

	if raw {
		recs, err := ParseObjectNotification(body)
		if err != nil {
			return nil, err
		}
		out := make([]UploadEvent, 0, len(recs))
		for _, r := range recs {
			out = append(out, UploadEvent{Key: r.Key, Bucket: r.Bucket, EventType: EventObjectCreated})
		}
		return out, nil
	}

	var ev UploadEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal upload event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return []UploadEvent{ev}, nil
}

// ParseDeleteEvents is the delete-events counterpart of ParseUploadEvents.
func ParseDeleteEvents(body []byte) ([]DeleteEvent, error) {
	raw, err := isNotification(body)
	if err != nil {
		return nil, err
	}

	if raw {
		recs, err := ParseObjectNotification(body)
		if err != nil {
			return nil, err
		}
		out := make([]DeleteEvent, 0, len(recs))
		for _, r := range recs {
			out = append(out, DeleteEvent{Key: r.Key, Bucket: r.Bucket, EventType: EventObjectRemoved})
		}
		return out, nil
	}

	var ev DeleteEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal delete event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return []DeleteEvent{ev}, nil
}

func isNotification(body []byte) (bool, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("unmarshal message body: %w", err)
	}
	return len(env.Records) > 0 || env.Event == s3TestEvent, nil
}

// DecodeKey turns a key as delivered in a notification into the stored key.
// Notifications encode keys like a query string: '+' is a space.
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("decode key %q: %w", raw, err)
	}
	return key, nil
}
