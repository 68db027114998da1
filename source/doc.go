// Package source provides tiledoc.TileSource implementations.
//
// Dir reads tiles from a directory tree and HTTP fetches them from a tile
// server. Blob reads them from any blob.Store, including Redis and S3.
// Cached keeps decoded tiles in a cost-bounded LRU; Latency delays another
// source to emulate a slow network while debugging.
//
// PNG, JPEG and WebP tiles are decoded.
package source
