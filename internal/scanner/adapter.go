package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	pkglog "github.com/shubomifashakin/Temp-AWS-Infra/pkg/log"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// Report is the verdict for one object.
type Report struct {
	Bucket string
	Key    string
	Result domain.ScanResult
}

// Adapter downloads objects into a scratch directory and scans them.
type Adapter struct {
	store      storage.Storage
	scanner    Scanner
	scratchDir string
}

// NewAdapter creates an adapter. An empty scratchDir uses os.TempDir.
func NewAdapter(store storage.Storage, scanner Scanner, scratchDir string) *Adapter {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Adapter{store: store, scanner: scanner, scratchDir: scratchDir}
}

// Scan fetches bucket/rawKey and scans it. rawKey is the key as it appears
// in a notification and is decoded first. The scratch copy is always removed.
func (a *Adapter) Scan(ctx context.Context, bucket, rawKey string) (Report, error) {
	key, err := domain.DecodeKey(rawKey)
	if err != nil {
		return Report{}, err
	}

	ctx = pkglog.WithFields(ctx, pkglog.FieldBucket, bucket, pkglog.FieldKey, key)
	l := pkglog.Ctx(ctx)

	path, err := a.download(ctx, bucket, key)
	if path != "" {
		defer func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				l.Error().Err(err).Str("path", path).Msg("failed to remove scratch file")
			}
		}()
	}
	if err != nil {
		return Report{}, err
	}

	result, err := a.scanner.Scan(ctx, path)
	if err != nil {
		return Report{}, err
	}

	l.Info().Bool("infected", result.Infected).Msg("scan complete")
	return Report{Bucket: bucket, Key: key, Result: result}, nil
}

// download streams the object into a fresh scratch file. The returned path
// is set whenever a file was created, even on error.
func (a *Adapter) download(ctx context.Context, bucket, key string) (string, error) {
	f, err := os.CreateTemp(a.scratchDir, "scan-*-"+scratchSuffix(key))
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()

	rc, err := a.store.Read(ctx, bucket, key)
	if err != nil {
		f.Close()
		return path, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	defer rc.Close()

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return path, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

// scratchSuffix keeps the base name of key for readable scan output, minus
// the characters clamscan uses as separators.
func scratchSuffix(key string) string {
	return strings.ReplaceAll(filepath.Base(key), ":", "_")
}
