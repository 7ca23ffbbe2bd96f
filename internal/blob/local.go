package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalFS stores uploads under a single directory on local disk.
type LocalFS struct {
	Root string
}

// NewLocalFS creates the upload directory if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalFS{Root: root}, nil
}

// ReadBytes loads the object stored under key.
func (l *LocalFS) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.Root, filepath.Clean(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// SaveBytes writes data under a fresh key derived from filename and returns
// the key.
func (l *LocalFS) SaveBytes(ctx context.Context, filename string, data []byte) (string, error) {
	key := uuid.New().String() + sanitizeExt(filename)
	if err := os.WriteFile(filepath.Join(l.Root, key), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return key, nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return ext
	}
	return ".bin"
}
