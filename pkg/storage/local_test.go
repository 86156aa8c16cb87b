package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	st, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir(), Bucket: "uploads"})
	require.NoError(t, err)
	return st
}

func TestLocalStorageWriteRead(t *testing.T) {
	ctx := context.Background()
	st := newLocal(t)

	require.NoError(t, st.Write(ctx, "", "docs/a b.txt", strings.NewReader("hello"), 5, "text/plain"))

	rc, err := st.Read(ctx, "uploads", "docs/a b.txt")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestLocalStorageReadMissing(t *testing.T) {
	_, err := newLocal(t).Read(context.Background(), "", "nope.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageKeysCannotEscapeBasePath(t *testing.T) {
	st := newLocal(t)
	path := st.fullPath("uploads", "../../etc/passwd")
	assert.True(t, strings.HasPrefix(path, st.GetBasePath()))
}

func TestLocalStorageDeleteObjectsReportsPerKeyErrors(t *testing.T) {
	ctx := context.Background()
	st := newLocal(t)

	require.NoError(t, st.Write(ctx, "", "one.txt", strings.NewReader("1"), 1, ""))
	// A non-empty directory cannot be removed with os.Remove.
	require.NoError(t, st.Write(ctx, "", "dir/child.txt", strings.NewReader("c"), 1, ""))

	failed, err := st.DeleteObjects(ctx, "", []string{"one.txt", "missing.txt", "dir"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "dir", failed[0].Key)

	ok, err := st.Exists(ctx, "", "one.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(filepath.Join(st.GetBasePath(), "uploads", "dir", "child.txt"))
	assert.NoError(t, err)
}
