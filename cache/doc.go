// Package cache provides a cost-bounded LRU cache for decoded tiles.
//
// Decoded tiles are large (a full 1024x1024 RGBA tile is 4 MiB), so the
// cache is bounded by total cost rather than entry count:
//
//	c := cache.New[string, image.Image](256<<20, cache.ImageCost)
//	c.Set(locator, img)
//	img, ok := c.Get(locator)
//
// # Thread Safety
//
// LRU is safe for concurrent use and must not be copied after creation.
package cache
