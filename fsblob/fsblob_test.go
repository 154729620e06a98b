package fsblob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAdapter(dir, "http://localhost:8080/blobs/", nil)
	assert.NoError(t, err)

	ctx := context.Background()
	stored, err := a.Put(ctx, []byte("png bytes"), "photo.png", "image/png")
	assert.NoError(t, err)
	assert.Equal(t, int64(9), stored.Size)
	assert.Equal(t, "image/png", stored.MimeType)
	assert.True(t, strings.HasPrefix(stored.URL, "http://localhost:8080/blobs/"))
	assert.True(t, strings.HasPrefix(stored.Name, "photo-"))
	assert.True(t, strings.HasSuffix(stored.Name, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, stored.Name))
	assert.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)

	// Delete accepts the public URL.
	assert.NoError(t, a.Delete(ctx, stored.URL))
	_, err = os.Stat(filepath.Join(dir, stored.Name))
	assert.True(t, os.IsNotExist(err))
}

func TestPut_SameFilenameNeverCollides(t *testing.T) {
	a, err := NewAdapter(t.TempDir(), "http://x/blobs", nil)
	assert.NoError(t, err)

	ctx := context.Background()
	first, err := a.Put(ctx, []byte("one"), "photo.png", "image/png")
	assert.NoError(t, err)
	second, err := a.Put(ctx, []byte("two"), "photo.png", "image/png")
	assert.NoError(t, err)
	assert.NotEqual(t, first.Name, second.Name)
}

func TestDelete_MissingIsNotAnError(t *testing.T) {
	a, err := NewAdapter(t.TempDir(), "http://x/blobs", nil)
	assert.NoError(t, err)

	assert.NoError(t, a.Delete(context.Background(), "never-stored.png"))
}

func TestDelete_StripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAdapter(filepath.Join(dir, "blobs"), "http://x/blobs", nil)
	assert.NoError(t, err)

	outside := filepath.Join(dir, "outside.txt")
	assert.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	assert.NoError(t, a.Delete(context.Background(), "../outside.txt"))
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}
