package source

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"io"

	_ "golang.org/x/image/webp" // register WebP
)

// MaxTileBytes bounds the encoded size of a single tile.
const MaxTileBytes = 64 << 20

// ErrTileTooLarge is returned when an encoded tile exceeds MaxTileBytes.
var ErrTileTooLarge = errors.New("source: tile exceeds size limit")

// Decode decodes one encoded tile, auto-detecting the format.
func Decode(r io.Reader) (image.Image, error) {
	lr := &io.LimitedReader{R: r, N: MaxTileBytes + 1}
	img, _, err := image.Decode(lr)
	if err != nil {
		if lr.N <= 0 {
			return nil, ErrTileTooLarge
		}
		return nil, fmt.Errorf("source: decode: %w", err)
	}
	return img, nil
}
