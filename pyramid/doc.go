// Package pyramid cuts source images into the tile layout tiledoc reads.
//
// For every document a Builder resamples the source into a chain of
// levels, each half the size of the next, cuts every level into square
// tiles and writes them as PNG files at the paths produced by a
// tiledoc.Locator. The sizes of all documents built are collected into a
// catalog that Builder.WriteCatalog saves next to the tiles.
//
// Level 0 is the smallest level; the last level has the source's native
// size. Tiles are encoded in parallel on a worker pool.
package pyramid
