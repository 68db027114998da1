package source

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/gogpu/tiledoc/blob"
)

// Blob loads tiles from a blob.Store, such as tiles the pyramid builder
// wrote to Redis or an S3 bucket.
type Blob struct {
	store blob.Store
}

// NewBlob returns a source reading from store.
func NewBlob(store blob.Store) *Blob {
	return &Blob{store: store}
}

// Load fetches and decodes the object stored under locator.
func (b *Blob) Load(ctx context.Context, locator string) (image.Image, error) {
	data, err := b.store.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxTileBytes {
		return nil, fmt.Errorf("%w: %s", ErrTileTooLarge, locator)
	}
	return Decode(bytes.NewReader(data))
}
