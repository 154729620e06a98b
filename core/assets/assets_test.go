package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAdapter struct {
	puts    []string
	deletes []string
	failPut map[string]error
	failDel map[string]error
}

func (f *fakeAdapter) Put(ctx context.Context, content []byte, suggestedName string, contentType string) (StoredAsset, error) {
	if err := f.failPut[suggestedName]; err != nil {
		return StoredAsset{}, err
	}
	f.puts = append(f.puts, suggestedName)
	return StoredAsset{
		Name:     suggestedName,
		URL:      "http://blobs/" + suggestedName,
		MimeType: contentType,
		Size:     int64(len(content)),
	}, nil
}

func (f *fakeAdapter) Delete(ctx context.Context, nameOrURL string) error {
	if err := f.failDel[nameOrURL]; err != nil {
		return err
	}
	f.deletes = append(f.deletes, nameOrURL)
	return nil
}

type fakeTransformer struct {
	fail map[string]error
}

func (f *fakeTransformer) Transform(ctx context.Context, content []byte, contentType string, profile SizeProfile) ([]byte, error) {
	if err := f.fail[profile.Name]; err != nil {
		return nil, err
	}
	return append([]byte("variant:"), content...), nil
}

func TestUpload(t *testing.T) {
	adapter := &fakeAdapter{}
	u := NewUploader(adapter, &fakeTransformer{}, nil)

	ref, err := u.Upload(context.Background(), PendingUpload{
		Data:        []byte("png bytes"),
		Filename:    "photo.png",
		ContentType: "image/png",
	}, []SizeProfile{
		{Name: "thumbnail", Width: 400, Height: 300},
		{Name: "card", Width: 768, Height: 1024},
	})
	assert.NoError(t, err)
	assert.Equal(t, "http://blobs/photo.png", ref.URL)
	assert.Equal(t, "image/png", ref.MimeType)
	assert.Equal(t, int64(9), ref.Size)
	assert.Equal(t, "http://blobs/photo-thumbnail.png", ref.SizeVariants["thumbnail"])
	assert.Equal(t, "http://blobs/photo-card.png", ref.SizeVariants["card"])
}

func TestUpload_OriginalFailureAborts(t *testing.T) {
	adapter := &fakeAdapter{failPut: map[string]error{"photo.png": errors.New("quota exceeded")}}
	u := NewUploader(adapter, nil, nil)

	_, err := u.Upload(context.Background(), PendingUpload{
		Data: []byte("x"), Filename: "photo.png", ContentType: "image/png",
	}, nil)

	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "put", storageErr.Op)
}

func TestUpload_FailedVariantSkipped(t *testing.T) {
	adapter := &fakeAdapter{}
	transformer := &fakeTransformer{fail: map[string]error{"card": errors.New("resize crashed")}}
	u := NewUploader(adapter, transformer, nil)

	ref, err := u.Upload(context.Background(), PendingUpload{
		Data: []byte("x"), Filename: "photo.png", ContentType: "image/png",
	}, []SizeProfile{
		{Name: "thumbnail", Width: 400, Height: 300},
		{Name: "card", Width: 768, Height: 1024},
	})
	assert.NoError(t, err)
	assert.Contains(t, ref.SizeVariants, "thumbnail")
	assert.NotContains(t, ref.SizeVariants, "card")
}

func TestUpload_NoTransformerNoVariants(t *testing.T) {
	adapter := &fakeAdapter{}
	u := NewUploader(adapter, nil, nil)

	ref, err := u.Upload(context.Background(), PendingUpload{
		Data: []byte("x"), Filename: "doc.pdf", ContentType: "application/pdf",
	}, []SizeProfile{{Name: "thumbnail", Width: 400}})
	assert.NoError(t, err)
	assert.Nil(t, ref.SizeVariants)
	assert.Equal(t, []string{"doc.pdf"}, adapter.puts)
}

func TestRemove(t *testing.T) {
	adapter := &fakeAdapter{}
	u := NewUploader(adapter, nil, nil)

	failed := u.Remove(context.Background(), AssetReference{
		URL: "http://blobs/photo.png",
		SizeVariants: map[string]string{
			"thumbnail": "http://blobs/photo-thumbnail.png",
		},
	})
	assert.Empty(t, failed)
	assert.ElementsMatch(t, []string{
		"http://blobs/photo.png",
		"http://blobs/photo-thumbnail.png",
	}, adapter.deletes)
}

func TestRemove_CollectsFailures(t *testing.T) {
	adapter := &fakeAdapter{failDel: map[string]error{"http://blobs/photo.png": errors.New("backend down")}}
	u := NewUploader(adapter, nil, nil)

	failed := u.Remove(context.Background(), AssetReference{
		URL:          "http://blobs/photo.png",
		SizeVariants: map[string]string{"thumbnail": "http://blobs/photo-thumbnail.png"},
	})
	assert.Equal(t, []string{"http://blobs/photo.png"}, failed)
	assert.Equal(t, []string{"http://blobs/photo-thumbnail.png"}, adapter.deletes)
}

func TestRefFromDocument(t *testing.T) {
	ref := AssetReference{
		DocumentID:   "m1",
		URL:          "http://blobs/a.png",
		MimeType:     "image/png",
		Size:         9,
		SizeVariants: map[string]string{"thumbnail": "http://blobs/a-thumbnail.png"},
	}

	parsed, ok := RefFromDocument(ref.ToDocument())
	assert.True(t, ok)
	assert.Equal(t, ref, parsed)

	_, ok = RefFromDocument("not a reference")
	assert.False(t, ok)
}
