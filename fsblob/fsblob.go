// Package fsblob implements the assets.Adapter contract on a local
// directory. Stored names get a random suffix so repeated uploads of the
// same filename never collide, and URLs are formed by joining a configured
// public base with the stored name.
package fsblob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asaidimu/go-vellum/core/assets"
)

// Adapter stores blobs as files under a root directory.
type Adapter struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

var _ assets.Adapter = (*Adapter)(nil)

// NewAdapter creates an Adapter rooted at dir, creating it if needed.
// baseURL is the public prefix under which dir is served.
func NewAdapter(dir string, baseURL string, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory %s: %w", dir, err)
	}
	return &Adapter{
		root:    dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Put writes content under a suffixed variant of suggestedName and returns
// the stored record.
func (a *Adapter) Put(ctx context.Context, content []byte, suggestedName string, contentType string) (assets.StoredAsset, error) {
	if err := ctx.Err(); err != nil {
		return assets.StoredAsset{}, err
	}
	name := suffixedName(suggestedName)
	path := filepath.Join(a.root, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return assets.StoredAsset{}, fmt.Errorf("writing blob %s: %w", name, err)
	}
	a.logger.Debug("blob stored", zap.String("name", name), zap.Int("size", len(content)))
	return assets.StoredAsset{
		Name:     name,
		URL:      a.baseURL + "/" + name,
		MimeType: contentType,
		Size:     int64(len(content)),
	}, nil
}

// Delete removes a stored blob by name or public URL. Deleting a missing
// blob is not an error.
func (a *Adapter) Delete(ctx context.Context, nameOrURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := strings.TrimPrefix(nameOrURL, a.baseURL+"/")
	// Reject names that would escape the root directory.
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid blob name %q", nameOrURL)
	}
	err := os.Remove(filepath.Join(a.root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", name, err)
	}
	return nil
}

// suffixedName inserts a short random suffix before the extension.
func suffixedName(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	if base == "" {
		base = "blob"
	}
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s-%s%s", base, suffix, ext)
}
