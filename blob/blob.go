package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when no object is stored under a key.
var ErrNotFound = errors.New("blob: not found")

// ErrBadKey is returned for keys that are empty or escape the store.
var ErrBadKey = errors.New("blob: invalid key")

// Store is a flat key/value store for encoded objects.
// Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// CleanKey validates key and strips a leading slash.
func CleanKey(key string) (string, error) {
	k := strings.TrimPrefix(key, "/")
	if k == "" || k != path.Clean(k) || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return k, nil
}

// Dir stores objects as files below a root directory.
type Dir struct {
	root string
}

// NewDir returns a store rooted at root. The directory is created on the
// first Put.
func NewDir(root string) *Dir {
	return &Dir{root: filepath.Clean(root)}
}

// Root returns the directory objects are stored in.
func (d *Dir) Root() string {
	return d.root
}

// Put writes data to root/key, creating directories as needed.
func (d *Dir) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := CleanKey(key)
	if err != nil {
		return err
	}

	p := filepath.Join(d.root, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blob: create dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("blob: write %s: %w", k, err)
	}
	return nil
}

// Get reads root/key. Keys cannot escape the root.
func (d *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(d.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		return nil, fmt.Errorf("blob: open root: %w", err)
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(filepath.FromSlash(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		return nil, fmt.Errorf("blob: open %s: %w", k, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", k, err)
	}
	return data, nil
}
