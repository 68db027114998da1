package tiledoc

import (
	"context"
	"image"
)

// TileSource resolves a tile locator to a decoded image.
//
// Load may block; controllers call it through an Executor. Each call is
// independent and results may complete in any order. Implementations
// should return promptly once ctx is cancelled, but a Controller never
// relies on that: results of superseded loads are discarded on arrival.
type TileSource interface {
	Load(ctx context.Context, locator string) (image.Image, error)
}

// TileSourceFunc adapts a function to the TileSource interface.
type TileSourceFunc func(ctx context.Context, locator string) (image.Image, error)

// Load calls f.
func (f TileSourceFunc) Load(ctx context.Context, locator string) (image.Image, error) {
	return f(ctx, locator)
}

// Releaser is implemented by decoded images that hold pooled or
// otherwise reclaimable memory. Controllers call Release when an image
// is dropped from the grid or arrives too late to be used.
type Releaser interface {
	Release()
}

func release(img image.Image) {
	if r, ok := img.(Releaser); ok {
		r.Release()
	}
}

// TileRef identifies an issued load. Generation is captured when the load
// is issued and decides on arrival whether the result is still wanted.
type TileRef struct {
	Coordinate TileCoordinate
	Generation uint64
	Locator    string
}

// LoadResult is the outcome of one TileSource.Load call.
type LoadResult struct {
	Image image.Image
	Err   error
}

// FailureSink observes tile load failures. It is called on the
// controller's logical thread and must not call back into the controller.
type FailureSink interface {
	TileFailed(err *TileLoadError)
}

// FailureSinkFunc adapts a function to the FailureSink interface.
type FailureSinkFunc func(err *TileLoadError)

// TileFailed calls f.
func (f FailureSinkFunc) TileFailed(err *TileLoadError) {
	f(err)
}
