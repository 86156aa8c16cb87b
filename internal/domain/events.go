package domain

import (
	"errors"
	"time"
)

// EventType identifies the object-store change an event was derived from.
type EventType string

const (
	EventObjectCreated EventType = "s3:ObjectCreated:Put"
	EventObjectRemoved EventType = "s3:ObjectRemoved:Delete"
)

// UploadEvent is the normalized put notification carried on the put-events queue.
type UploadEvent struct {
	Key       string    `json:"key"`
	Bucket    string    `json:"bucket,omitempty"`
	EventType EventType `json:"eventType"`
}

// Validate reports whether the event can be processed at all.
func (e UploadEvent) Validate() error {
	if e.Key == "" {
		return errors.New("upload event has no key")
	}
	return nil
}

// DeleteEvent is the normalized removal notification carried on the
// delete-events queue.
type DeleteEvent struct {
	Key       string    `json:"key"`
	Bucket    string    `json:"bucket,omitempty"`
	EventType EventType `json:"eventType"`
}

// Validate reports whether the event can be processed at all.
func (e DeleteEvent) Validate() error {
	if e.Key == "" {
		return errors.New("delete event has no key")
	}
	return nil
}

// DeleteBatch groups keys removed together in one store call.
type DeleteBatch struct {
	Keys      []string  `json:"keys"`
	DeletedAt time.Time `json:"deletedAt"`
}

// UserDeleteRequest is an explicit deletion command. FileID is the object key.
type UserDeleteRequest struct {
	UserID string `json:"userId"`
	FileID string `json:"fileId"`
}

// Validate reports whether the request names an object.
func (r UserDeleteRequest) Validate() error {
	if r.FileID == "" {
		return errors.New("user delete request has no fileId")
	}
	return nil
}

// QuarantineRemoval asks for an infected object to be removed.
type QuarantineRemoval struct {
	S3Key string `json:"s3Key"`
}

// Validate reports whether the message names an object.
func (q QuarantineRemoval) Validate() error {
	if q.S3Key == "" {
		return errors.New("quarantine removal has no s3Key")
	}
	return nil
}

// ScanResult is the verdict for one object. It is never persisted.
type ScanResult struct {
	Infected bool   `json:"infected"`
	Virus    string `json:"virus,omitempty"`
}

// SigningSecret is the payload stored in the secret store.
type SigningSecret struct {
	Signature string `json:"signature"`
}
