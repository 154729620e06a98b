// Package assets abstracts the binary blob store used by upload-type fields.
// The engine is agnostic to the concrete backing store; it requires only an
// idempotent Delete and that Put return a stable, publicly resolvable URL.
package assets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SizeProfile declares one named derived variant of an uploaded image,
// e.g. {Name:"thumbnail", Width:400, Height:300}. Height 0 preserves aspect.
type SizeProfile struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height,omitempty"`
}

// AssetReference is the value stored in an upload-type field once a binary
// has been placed in the blob store.
type AssetReference struct {
	DocumentID   string            `json:"documentId"`
	URL          string            `json:"url"`
	MimeType     string            `json:"mimeType"`
	Size         int64             `json:"size"`
	SizeVariants map[string]string `json:"sizeVariants,omitempty"`
}

// ToDocument flattens the reference into the JSON-shaped form stored inside
// a document field.
func (r AssetReference) ToDocument() map[string]any {
	m := map[string]any{
		"documentId": r.DocumentID,
		"url":        r.URL,
		"mimeType":   r.MimeType,
		"size":       r.Size,
	}
	if len(r.SizeVariants) > 0 {
		variants := make(map[string]any, len(r.SizeVariants))
		for name, url := range r.SizeVariants {
			variants[name] = url
		}
		m["sizeVariants"] = variants
	}
	return m
}

// RefFromDocument reconstructs an AssetReference from a stored field value.
func RefFromDocument(value any) (AssetReference, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return AssetReference{}, false
	}
	ref := AssetReference{
		DocumentID: stringAt(m, "documentId"),
		URL:        stringAt(m, "url"),
		MimeType:   stringAt(m, "mimeType"),
	}
	switch size := m["size"].(type) {
	case int64:
		ref.Size = size
	case float64:
		ref.Size = int64(size)
	case int:
		ref.Size = int64(size)
	}
	if variants, ok := m["sizeVariants"].(map[string]any); ok {
		ref.SizeVariants = make(map[string]string, len(variants))
		for name, url := range variants {
			if s, ok := url.(string); ok {
				ref.SizeVariants[name] = s
			}
		}
	}
	if ref.URL == "" && ref.DocumentID == "" {
		return AssetReference{}, false
	}
	return ref, true
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// PendingUpload is the raw binary payload supplied in an upload field before
// the adapter has stored it.
type PendingUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// StoredAsset is the adapter's record of one stored blob.
type StoredAsset struct {
	Name     string
	URL      string
	MimeType string
	Size     int64
}

// Adapter is the blob store collaborator. Delete must be idempotent:
// deleting a non-existent asset is not an error.
type Adapter interface {
	Put(ctx context.Context, content []byte, suggestedName string, contentType string) (StoredAsset, error)
	Delete(ctx context.Context, nameOrURL string) error
}

// Transformer derives one resized rendition of an image. Invoked once per
// declared size profile at upload time; the engine does not transcode itself.
type Transformer interface {
	Transform(ctx context.Context, content []byte, contentType string, profile SizeProfile) ([]byte, error)
}

// StorageError wraps a blob put or delete failure.
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("blob %s of %q failed: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Uploader stores pending binaries and produces AssetReferences, deriving
// the configured size variants through the transformer.
type Uploader struct {
	adapter     Adapter
	transformer Transformer
	logger      *zap.Logger
}

// NewUploader builds an Uploader. The transformer may be nil, in which case
// no size variants are produced. A nil logger falls back to a no-op logger.
func NewUploader(adapter Adapter, transformer Transformer, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{adapter: adapter, transformer: transformer, logger: logger}
}

// Upload puts the original binary and then derives each declared size
// profile. A failed variant is logged and skipped rather than failing the
// upload; the variant is simply absent from SizeVariants.
func (u *Uploader) Upload(ctx context.Context, pending PendingUpload, profiles []SizeProfile) (AssetReference, error) {
	stored, err := u.adapter.Put(ctx, pending.Data, pending.Filename, pending.ContentType)
	if err != nil {
		return AssetReference{}, &StorageError{Op: "put", Name: pending.Filename, Err: err}
	}

	ref := AssetReference{
		URL:      stored.URL,
		MimeType: stored.MimeType,
		Size:     stored.Size,
	}

	if u.transformer == nil || len(profiles) == 0 {
		return ref, nil
	}

	ref.SizeVariants = make(map[string]string, len(profiles))
	for _, profile := range profiles {
		derived, err := u.transformer.Transform(ctx, pending.Data, pending.ContentType, profile)
		if err != nil {
			u.logger.Warn("size variant derivation failed",
				zap.String("asset", pending.Filename),
				zap.String("profile", profile.Name),
				zap.Error(err))
			continue
		}
		name := variantName(pending.Filename, profile.Name)
		variant, err := u.adapter.Put(ctx, derived, name, pending.ContentType)
		if err != nil {
			u.logger.Warn("size variant upload failed",
				zap.String("asset", pending.Filename),
				zap.String("profile", profile.Name),
				zap.Error(err))
			continue
		}
		ref.SizeVariants[profile.Name] = variant.URL
	}
	if len(ref.SizeVariants) == 0 {
		ref.SizeVariants = nil
	}
	return ref, nil
}

// Remove deletes the original blob and every variant, returning the targets
// that failed. Failures are logged; an orphaned blob is preferable to
// failing a committed delete.
func (u *Uploader) Remove(ctx context.Context, ref AssetReference) []string {
	targets := []string{ref.URL}
	for _, url := range ref.SizeVariants {
		targets = append(targets, url)
	}
	var failed []string
	for _, target := range targets {
		if target == "" {
			continue
		}
		if err := u.adapter.Delete(ctx, target); err != nil {
			u.logger.Warn("blob delete failed", zap.String("target", target), zap.Error(err))
			failed = append(failed, target)
		}
	}
	return failed
}

func variantName(filename, profile string) string {
	ext := ""
	base := filename
	if i := lastDot(filename); i >= 0 {
		base, ext = filename[:i], filename[i:]
	}
	return fmt.Sprintf("%s-%s%s", base, profile, ext)
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
		if s[i] == '/' {
			return -1
		}
	}
	return -1
}
