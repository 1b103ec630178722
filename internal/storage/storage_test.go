package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "videos/tech/abc.mp4", ObjectPath("tech", "abc"))
	assert.Equal(t, "videos/etc-passwd/x.mp4", ObjectPath("../etc/passwd", "x"))
	assert.Equal(t, "videos/unknown/unknown.mp4", ObjectPath("", "  "))
}

func TestLocalStore_Upload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "https://cdn.example.com/assets/")
	require.NoError(t, err)

	asset, err := store.Upload(context.Background(), []byte("mp4"), "vid-1", "fitness")
	require.NoError(t, err)
	assert.Equal(t, "videos/fitness/vid-1.mp4", asset.StoragePath)
	assert.Equal(t, "https://cdn.example.com/assets/videos/fitness/vid-1.mp4", asset.PublicURL)
	assert.Equal(t, int64(3), asset.Size)

	data, err := os.ReadFile(filepath.Join(dir, "videos", "fitness", "vid-1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "videos", "fitness"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")

	require.NoError(t, store.Delete(context.Background(), asset.StoragePath))
	require.NoError(t, store.Delete(context.Background(), asset.StoragePath))
	_, err = os.Stat(filepath.Join(dir, "videos", "fitness", "vid-1.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_RejectsEmptyAndCanceled(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/assets")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), nil, "v", "n")
	assert.ErrorContains(t, err, "empty asset")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, []byte("x"), "v", "n")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalStore_Validation(t *testing.T) {
	_, err := NewLocalStore("", "http://x")
	assert.Error(t, err)
	_, err = NewLocalStore(t.TempDir(), "")
	assert.Error(t, err)
}
