package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on the local filesystem. Each bucket is a
// directory under the base path. It backs local runs and tests.
type LocalStorage struct {
	basePath      string
	defaultBucket string
}

// LocalConfig holds configuration for local storage.
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
	Bucket   string `mapstructure:"bucket"`
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &LocalStorage{
		basePath:      absPath,
		defaultBucket: cfg.Bucket,
	}, nil
}

// fullPath returns the full filesystem path for a bucket/key pair.
func (s *LocalStorage) fullPath(bucket, key string) string {
	if bucket == "" {
		bucket = s.defaultBucket
	}
	return filepath.Join(s.basePath, clean(bucket), clean(key))
}

// clean rejects path elements that would escape the base path.
func clean(p string) string {
	c := filepath.Clean("/" + p)
	c = strings.TrimPrefix(c, "/")
	if c == ".." || strings.HasPrefix(c, ".."+string(os.PathSeparator)) {
		return ""
	}
	return c
}

// Write stores content from the reader with the given key.
func (s *LocalStorage) Write(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	path := s.fullPath(bucket, key)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Read retrieves content for the given key.
func (s *LocalStorage) Read(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.fullPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes the content with the given key.
func (s *LocalStorage) Delete(ctx context.Context, bucket, key string) error {
	err := os.Remove(s.fullPath(bucket, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// DeleteObjects removes each key and reports the ones that failed.
// Like S3, a key that does not exist counts as deleted.
func (s *LocalStorage) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed []DeleteError
	for _, key := range keys {
		if err := s.Delete(ctx, bucket, key); err != nil {
			failed = append(failed, DeleteError{Key: key, Code: "InternalError", Message: err.Error()})
		}
	}
	return failed, nil
}

// Exists checks if content with the given key exists.
func (s *LocalStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := os.Stat(s.fullPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}

	return true, nil
}

// GetBasePath returns the base path for the storage.
func (s *LocalStorage) GetBasePath() string {
	return s.basePath
}
