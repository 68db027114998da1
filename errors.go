package tiledoc

import (
	"errors"
	"fmt"
)

// Configuration errors. They are wrapped in a *ConfigError and can be
// matched with errors.Is.
var (
	// ErrUnknownDocument is returned when the catalog has no entry for a document.
	ErrUnknownDocument = errors.New("tiledoc: unknown document")

	// ErrEmptySizes is returned when a document has no levels.
	ErrEmptySizes = errors.New("tiledoc: document has no levels")

	// ErrNotAscending is returned when level widths do not strictly increase.
	ErrNotAscending = errors.New("tiledoc: level widths are not strictly ascending")

	// ErrLevelMismatch is returned when documents in one catalog have
	// different level counts.
	ErrLevelMismatch = errors.New("tiledoc: level count differs between documents")

	// ErrBadSize is returned for a malformed or non-positive size.
	ErrBadSize = errors.New("tiledoc: invalid size")

	// ErrLodOutOfRange is returned when a requested level does not exist.
	ErrLodOutOfRange = errors.New("tiledoc: level out of range")
)

// Runtime conditions that never escape a Controller as failures.
var (
	// ErrStaleResult marks a load result whose generation was superseded.
	ErrStaleResult = errors.New("tiledoc: stale load result")

	// ErrDestroyed marks an operation on a destroyed controller.
	ErrDestroyed = errors.New("tiledoc: controller destroyed")
)

// ConfigError reports a catalog problem that prevents a document from
// being displayed.
type ConfigError struct {
	DocumentID DocumentID
	Err        error
}

func (e *ConfigError) Error() string {
	if e.DocumentID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (document %q)", e.Err, e.DocumentID)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TileLoadError describes one tile that failed to load.
// It is delivered to the FailureSink and stored on the tile; it is never
// returned to the caller of a Controller method.
type TileLoadError struct {
	DocumentID DocumentID
	Lod        Lod
	Coordinate TileCoordinate
	Locator    string
	Err        error
}

func (e *TileLoadError) Error() string {
	return fmt.Sprintf("tiledoc: load %s (document %q, lod %d, tile %d,%d): %v",
		e.Locator, e.DocumentID, e.Lod, e.Coordinate.Row, e.Coordinate.Col, e.Err)
}

func (e *TileLoadError) Unwrap() error { return e.Err }

// ErrNoImage is the failure recorded when a TileSource returns neither an
// image nor an error.
var ErrNoImage = errors.New("tiledoc: tile source returned no image")
