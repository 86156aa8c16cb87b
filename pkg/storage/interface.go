package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned (wrapped) when an object does not exist.
var ErrNotFound = errors.New("object not found")

// DeleteError reports a key that a bulk delete could not remove.
type DeleteError struct {
	Key     string
	Code    string
	Message string
}

func (e DeleteError) Error() string {
	return "delete " + e.Key + ": " + e.Code + ": " + e.Message
}

// Storage defines the object store operations the pipeline consumes.
// An empty bucket selects the backend's default bucket.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	Write(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error

	// Read streams the content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes a single object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// DeleteObjects removes all keys in one call. A non-nil error means the
	// call itself failed and nothing can be assumed about any key; otherwise
	// the returned slice lists the keys that could not be removed.
	DeleteObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error)

	// Exists checks if content with the given key exists.
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
