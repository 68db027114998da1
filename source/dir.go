package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// Dir loads tiles from files below a root directory. Locators are
// slash-separated paths relative to the root, as produced by
// tiledoc.DefaultLocator. Locators cannot escape the root.
type Dir struct {
	root string
}

// NewDir returns a source reading below root.
func NewDir(root string) *Dir {
	return &Dir{root: filepath.Clean(root)}
}

// Root returns the directory tiles are read from.
func (d *Dir) Root() string {
	return d.root
}

// Load opens and decodes the tile at locator.
func (d *Dir) Load(ctx context.Context, locator string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.FromSlash(strings.TrimPrefix(locator, "/"))
	f, err := os.OpenInRoot(d.root, name)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", locator, err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}
