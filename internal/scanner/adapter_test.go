package scanner

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// recordingScanner reads the scratch file it is handed.
type recordingScanner struct {
	result  domain.ScanResult
	err     error
	paths   []string
	content []string
}

func (s *recordingScanner) Scan(_ context.Context, path string) (domain.ScanResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.ScanResult{}, err
	}
	s.paths = append(s.paths, path)
	s.content = append(s.content, string(b))
	return s.result, s.err
}

func newStore(t *testing.T, objects map[string]string) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), Bucket: "uploads"})
	require.NoError(t, err)
	for key, body := range objects {
		require.NoError(t, store.Write(context.Background(), "uploads", key, strings.NewReader(body), int64(len(body)), "text/plain"))
	}
	return store
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdapterScanClean(t *testing.T) {
	scratch := t.TempDir()
	sc := &recordingScanner{}
	a := NewAdapter(newStore(t, map[string]string{"docs/report.pdf": "hello"}), sc, scratch)

	rep, err := a.Scan(context.Background(), "uploads", "docs/report.pdf")
	require.NoError(t, err)

	assert.Equal(t, Report{Bucket: "uploads", Key: "docs/report.pdf"}, rep)
	assert.Equal(t, []string{"hello"}, sc.content)
	assertScratchEmpty(t, scratch)
}

func TestAdapterDecodesKey(t *testing.T) {
	sc := &recordingScanner{}
	a := NewAdapter(newStore(t, map[string]string{"my file (1).txt": "x"}), sc, t.TempDir())

	rep, err := a.Scan(context.Background(), "uploads", "my+file+%281%29.txt")
	require.NoError(t, err)
	assert.Equal(t, "my file (1).txt", rep.Key)
}

func TestAdapterScanInfected(t *testing.T) {
	scratch := t.TempDir()
	sc := &recordingScanner{result: domain.ScanResult{Infected: true, Virus: "Eicar-Test-Signature"}}
	a := NewAdapter(newStore(t, map[string]string{"eicar.com": "X5O!"}), sc, scratch)

	rep, err := a.Scan(context.Background(), "uploads", "eicar.com")
	require.NoError(t, err)
	assert.True(t, rep.Result.Infected)
	assertScratchEmpty(t, scratch)
}

func TestAdapterDownloadFailure(t *testing.T) {
	scratch := t.TempDir()
	sc := &recordingScanner{}
	a := NewAdapter(newStore(t, nil), sc, scratch)

	_, err := a.Scan(context.Background(), "uploads", "missing.txt")
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, sc.paths)
	assertScratchEmpty(t, scratch)
}

func TestAdapterScanErrorCleansUp(t *testing.T) {
	scratch := t.TempDir()
	sc := &recordingScanner{err: &ScanError{ExitCode: 2}}
	a := NewAdapter(newStore(t, map[string]string{"a.txt": "a"}), sc, scratch)

	_, err := a.Scan(context.Background(), "uploads", "a.txt")
	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assertScratchEmpty(t, scratch)
}

func TestAdapterScratchNamesAreUnique(t *testing.T) {
	sc := &recordingScanner{}
	a := NewAdapter(newStore(t, map[string]string{"a.txt": "a"}), sc, t.TempDir())

	for i := 0; i < 2; i++ {
		_, err := a.Scan(context.Background(), "uploads", "a.txt")
		require.NoError(t, err)
	}
	require.Len(t, sc.paths, 2)
	assert.NotEqual(t, sc.paths[0], sc.paths[1])
	assert.True(t, strings.HasSuffix(sc.paths[0], "-a.txt"))
}

func TestAdapterInvalidKey(t *testing.T) {
	_, err := NewAdapter(newStore(t, nil), &recordingScanner{}, t.TempDir()).Scan(context.Background(), "uploads", "bad%zz")
	assert.Error(t, err)
}

func TestAdapterScratchNameDropsColons(t *testing.T) {
	sc := &recordingScanner{}
	a := NewAdapter(newStore(t, map[string]string{"a:b.txt": "x"}), sc, t.TempDir())

	rep, err := a.Scan(context.Background(), "uploads", "a%3Ab.txt")
	require.NoError(t, err)
	assert.Equal(t, "a:b.txt", rep.Key)

	require.Len(t, sc.paths, 1)
	assert.True(t, strings.HasSuffix(sc.paths[0], "-a_b.txt"))
	assert.NotContains(t, sc.paths[0], ":")
}
