// Package present draws tiled documents into raster images.
//
// A Compositor takes a tiledoc.TiledDocumentState and paints every tile
// of its grid into the logical footprint mapped onto a destination
// rectangle. Loaded tiles are resampled with an x/image/draw
// interpolator; pending and failed tiles are filled with placeholder
// colors. The optional debug overlay outlines each tile and labels it
// with its level and grid coordinate.
//
// Compositor is not safe for concurrent use: the debug font face keeps
// glyph caches.
package present
