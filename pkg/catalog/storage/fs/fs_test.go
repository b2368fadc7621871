package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-catalog/pkg/catalog"
)

func TestFSBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	key := "objects/ab/cdef_photo.txt"
	payload := []byte("plain text payload")

	require.NoError(t, backend.Upload(ctx, bytes.NewReader(payload), catalog.UploadParams{ObjectKey: key}))

	reader, err := backend.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, reader.Close())
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), meta.Size)
	assert.Contains(t, meta.ContentType, "text/plain")

	require.NoError(t, backend.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "objects"))
	assert.True(t, os.IsNotExist(err), "empty directories should be cleaned up")

	_, err = backend.Download(ctx, key)
	assert.ErrorIs(t, err, catalog.ErrObjectNotFound)
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	err = backend.Upload(context.Background(), bytes.NewReader(nil), catalog.UploadParams{ObjectKey: "../outside.txt"})
	assert.Error(t, err)
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestFSBackend_SizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	err = backend.Upload(ctx, bytes.NewReader([]byte("short")), catalog.UploadParams{ObjectKey: "a/b.txt", Size: 99})
	require.Error(t, err)

	_, err = backend.GetObjectMeta(ctx, "a/b.txt")
	assert.ErrorIs(t, err, catalog.ErrObjectNotFound)

	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files should be removed")

	assert.ErrorIs(t, backend.Delete(ctx, "a/b.txt"), catalog.ErrObjectNotFound)
}

func TestFSBackend_OverwriteReplacesWhole(t *testing.T) {
	ctx := context.Background()
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, backend.Upload(ctx, bytes.NewReader([]byte("first version, longer")), catalog.UploadParams{ObjectKey: "k"}))
	require.NoError(t, backend.Upload(ctx, bytes.NewReader([]byte("second")), catalog.UploadParams{ObjectKey: "k"}))

	reader, err := backend.Download(ctx, "k")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}
