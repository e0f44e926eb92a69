package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"veritas/internal/pipeline"
)

// LocalPreviewStore writes previews as JPEG files under a directory
type LocalPreviewStore struct {
	dir string
}

// NewLocalPreviewStore creates the directory if needed and returns a store rooted at it
func NewLocalPreviewStore(dir string) (*LocalPreviewStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &LocalPreviewStore{dir: dir}, nil
}

// Dir returns the store root
func (s *LocalPreviewStore) Dir() string {
	return s.dir
}

// Save encodes img and writes it to dir/name, returning that path
func (s *LocalPreviewStore) Save(ctx context.Context, name string, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	data, err := encodeJPEG(img)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}
	return path, nil
}

// Open returns the preview stored at path, which must lie inside the store root
func (s *LocalPreviewStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(path)
	if !strings.HasPrefix(clean, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to open preview: %w", err)
	}
	return f, nil
}

var _ pipeline.PreviewStore = (*LocalPreviewStore)(nil)
