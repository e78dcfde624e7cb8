package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBlobStore(t *testing.T) *LocalBlobStore {
	t.Helper()
	store, err := NewLocalBlobStore(LocalBlobStoreConfig{
		BaseDir:       t.TempDir(),
		PublicBaseURL: "http://localhost:8080/blobs/",
		PathPrefix:    "/image/upload/",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestLocalBlobStore_SaveAndDelete(t *testing.T) {
	store := newTestBlobStore(t)
	ctx := context.Background()

	blob, err := store.Save(ctx, "receipt.PDF", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(blob.StorageID, ".pdf"))
	assert.Equal(t, "http://localhost:8080/blobs/image/upload/"+blob.StorageID, blob.URL)
	assert.Equal(t, int64(8), blob.Size)
	assert.Equal(t, "application/pdf", blob.ContentType)

	content, err := os.ReadFile(filepath.Join(store.Dir(), blob.StorageID))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	require.NoError(t, store.Delete(ctx, blob.StorageID))
	_, err = os.Stat(filepath.Join(store.Dir(), blob.StorageID))
	assert.True(t, os.IsNotExist(err))

	// idempotent
	assert.NoError(t, store.Delete(ctx, blob.StorageID))
}

func TestLocalBlobStore_UniqueIDs(t *testing.T) {
	store := newTestBlobStore(t)

	first, err := store.Save(context.Background(), "a.jpg", "image/jpeg", []byte{1})
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "a.jpg", "image/jpeg", []byte{2})
	require.NoError(t, err)

	assert.NotEqual(t, first.StorageID, second.StorageID)
}

func TestLocalBlobStore_RejectsTraversal(t *testing.T) {
	store := newTestBlobStore(t)

	for _, id := range []string{"", "../secret", "a/b", `..\x`, ".."} {
		assert.Error(t, store.Delete(context.Background(), id), id)
	}
}

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"scan", "image/jpeg", ".jpg"},
		{"scan.jpeg", "image/png", ".png"},
		{"scan.webp", "image/webp", ".webp"},
		{"noext", "", ""},
		{"weird.verylongext", "", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extensionOf(tt.filename, tt.contentType), tt.filename)
	}
}

func TestNewLocalBlobStore_RequiresDir(t *testing.T) {
	_, err := NewLocalBlobStore(LocalBlobStoreConfig{}, zap.NewNop())
	assert.Error(t, err)
}
