package source

import (
	"context"
	"image"

	"github.com/gogpu/tiledoc"
	"github.com/gogpu/tiledoc/cache"
)

// Cached serves decoded tiles from an LRU and falls through to another
// source on a miss. Failures are not cached, so a later load retries.
//
// Images handed out by Cached are shared between callers and must not be
// mutated.
type Cached struct {
	src   tiledoc.TileSource
	cache *cache.LRU[string, image.Image]
}

// NewCached wraps src with c. A nil c gets a cache with
// cache.DefaultBudget bytes.
func NewCached(src tiledoc.TileSource, c *cache.LRU[string, image.Image]) *Cached {
	if c == nil {
		c = cache.New[string, image.Image](cache.DefaultBudget, cache.ImageCost)
	}
	return &Cached{src: src, cache: c}
}

// Cache returns the underlying LRU.
func (s *Cached) Cache() *cache.LRU[string, image.Image] {
	return s.cache
}

// Load returns the cached tile for locator or loads and caches it.
func (s *Cached) Load(ctx context.Context, locator string) (image.Image, error) {
	if img, ok := s.cache.Get(locator); ok {
		return img, nil
	}

	img, err := s.src.Load(ctx, locator)
	if err != nil {
		return nil, err
	}
	if _, shared := img.(tiledoc.Releaser); !shared {
		// Releasable images belong to the caller; caching them would
		// hand out memory that may be recycled.
		s.cache.Set(locator, img)
	}
	return img, nil
}
