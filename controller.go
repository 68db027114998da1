package tiledoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TiledDocumentState is a snapshot of a controller's live grid.
//
// LogicalWidth and LogicalHeight are fixed when the controller is created
// and never change: a level transition changes the resolution backing the
// footprint, not the footprint itself.
type TiledDocumentState struct {
	DocumentID    DocumentID
	CurrentLod    Lod
	LogicalWidth  float64
	LogicalHeight float64
	Generation    uint64
	Tiles         []TileDescriptor
}

// Stats counts the tiles of the current grid by state.
type Stats struct {
	Pending int
	Loaded  int
	Failed  int
}

// Total returns the number of tiles in the grid.
func (s Stats) Total() int {
	return s.Pending + s.Loaded + s.Failed
}

type lifecycle uint8

const (
	uninitialized lifecycle = iota
	ready
	destroyed
)

// Controller owns the tile grid of one document instance placed in a scene.
//
// It chooses the level for the instance's on-screen width, plans the grid
// of that level, issues a load per tile and applies results as they arrive.
// Every grid gets a new generation; a result whose generation is not the
// current one is discarded, so superseded loads can never touch the
// visible grid.
//
// Thread safety: Controller is NOT safe for concurrent use. All methods
// must be called on one logical thread, which must also be where the
// configured Dispatcher runs posted functions.
type Controller struct {
	id    DocumentID
	sizes []SizeEntry
	src   TileSource
	opts  options

	state         lifecycle
	lod           Lod
	logicalWidth  float64
	logicalHeight float64
	generation    uint64

	// tiles is the current grid in row-major order; cols is its width in tiles.
	tiles []TileDescriptor
	cols  int

	// ctx is cancelled when the current generation is superseded.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller for document id, plans the grid of
// the initial level and issues a load for every tile.
//
// It returns a *ConfigError if the catalog has no entry for id, the
// initial level does not exist, or the requested logical size or tile size
// is not positive.
func NewController(cat *Catalog, id DocumentID, src TileSource, opts ...Option) (*Controller, error) {
	if cat == nil {
		return nil, &ConfigError{DocumentID: id, Err: errors.New("tiledoc: nil catalog")}
	}
	if src == nil {
		return nil, &ConfigError{DocumentID: id, Err: errors.New("tiledoc: nil tile source")}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.tileSize <= 0 {
		return nil, &ConfigError{DocumentID: id, Err: fmt.Errorf("%w: tile size %d", ErrBadSize, o.tileSize)}
	}

	sizes, err := cat.Sizes(id)
	if err != nil {
		return nil, err
	}

	lod := o.initialLod
	if o.autoLod {
		lod = SelectLod(sizes, o.autoWidth)
	}
	if lod < 0 || int(lod) >= len(sizes) {
		return nil, &ConfigError{
			DocumentID: id,
			Err:        fmt.Errorf("%w: %d not in [0, %d]", ErrLodOutOfRange, lod, len(sizes)-1),
		}
	}

	c := &Controller{
		id:    id,
		sizes: sizes,
		src:   src,
		opts:  o,
	}

	if o.hasLogicalSize {
		if o.logicalWidth <= 0 || o.logicalHeight <= 0 {
			return nil, &ConfigError{
				DocumentID: id,
				Err:        fmt.Errorf("%w: logical size %gx%g", ErrBadSize, o.logicalWidth, o.logicalHeight),
			}
		}
		c.logicalWidth, c.logicalHeight = o.logicalWidth, o.logicalHeight
	} else {
		c.logicalWidth = float64(sizes[lod].Width)
		c.logicalHeight = float64(sizes[lod].Height)
	}

	c.state = ready
	c.install(lod)
	return c, nil
}

// DocumentID returns the document this controller shows.
func (c *Controller) DocumentID() DocumentID {
	return c.id
}

// Lod returns the current level.
func (c *Controller) Lod() Lod {
	return c.lod
}

// Generation returns the current grid generation.
func (c *Controller) Generation() uint64 {
	return c.generation
}

// LogicalSize returns the fixed logical footprint.
func (c *Controller) LogicalSize() (width, height float64) {
	return c.logicalWidth, c.logicalHeight
}

// Destroyed reports whether Destroy has been called.
func (c *Controller) Destroyed() bool {
	return c.state == destroyed
}

// OnZoomSettled selects the level for onScreenWidth and, if it differs
// from the current one, replaces the grid with a new generation.
// It reports whether the level changed.
//
// Calling it repeatedly with widths that map to the current level does
// nothing. On a destroyed controller it does nothing and reports false.
func (c *Controller) OnZoomSettled(onScreenWidth float64) bool {
	if c.state != ready {
		Logger().Debug("tiledoc: zoom ignored",
			slog.String("document", string(c.id)),
			slog.Any("err", ErrDestroyed))
		return false
	}

	lod := SelectLod(c.sizes, onScreenWidth)
	if lod == c.lod {
		return false
	}

	prev := c.lod
	c.generation++
	c.cancel()
	c.releaseTiles()
	c.install(lod)

	Logger().Debug("tiledoc: lod changed",
		slog.String("document", string(c.id)),
		slog.Int("from", int(prev)),
		slog.Int("to", int(lod)),
		slog.Uint64("generation", c.generation),
		slog.Float64("width", onScreenWidth))
	return true
}

// OnTileLoadResolved applies the result of a load issued for ref.
//
// Results for an older generation, for a tile that already resolved, or
// arriving after Destroy are dropped and their image released. A failure
// marks the tile Failed, is logged and is reported to the FailureSink; it
// never affects other tiles and is not retried automatically.
func (c *Controller) OnTileLoadResolved(ref TileRef, res LoadResult) {
	if c.state != ready {
		release(res.Image)
		return
	}
	if ref.Generation != c.generation {
		release(res.Image)
		Logger().Debug("tiledoc: dropped stale tile",
			slog.String("document", string(c.id)),
			slog.String("locator", ref.Locator),
			slog.Uint64("generation", ref.Generation),
			slog.Uint64("current", c.generation),
			slog.Any("err", ErrStaleResult))
		return
	}

	i := c.indexOf(ref.Coordinate)
	if i < 0 || c.tiles[i].State != Pending {
		release(res.Image)
		return
	}

	t := &c.tiles[i]
	if res.Err == nil && res.Image != nil {
		t.State = Loaded
		t.Image = res.Image
		c.notify()
		return
	}

	cause := res.Err
	if cause == nil {
		cause = ErrNoImage
	}
	loadErr := &TileLoadError{
		DocumentID: c.id,
		Lod:        c.lod,
		Coordinate: ref.Coordinate,
		Locator:    ref.Locator,
		Err:        cause,
	}
	t.State = Failed
	t.Err = loadErr
	release(res.Image)

	Logger().Warn("tiledoc: tile load failed",
		slog.String("document", string(c.id)),
		slog.Int("lod", int(c.lod)),
		slog.Int("row", ref.Coordinate.Row),
		slog.Int("col", ref.Coordinate.Col),
		slog.Any("err", cause))
	if c.opts.sink != nil {
		c.opts.sink.TileFailed(loadErr)
	}
	c.notify()
}

// Retry issues a new load for a Failed tile of the current grid.
// It reports false if the tile does not exist, is not Failed, or the
// controller is destroyed. If the observer replaces the grid while being
// notified of the retry, no load is issued for the old tile.
func (c *Controller) Retry(coord TileCoordinate) bool {
	if c.state != ready {
		return false
	}
	i := c.indexOf(coord)
	if i < 0 || c.tiles[i].State != Failed {
		return false
	}

	c.tiles[i].State = Pending
	c.tiles[i].Err = nil
	t, gen, ctx := c.tiles[i], c.generation, c.ctx
	c.notify()

	// The observer may have replaced or destroyed the grid.
	if c.state != ready || c.generation != gen {
		return true
	}
	c.issue(ctx, t)
	return true
}

// Destroy cancels outstanding loads and releases every tile image.
// Results arriving afterwards are ignored. Destroy is idempotent.
func (c *Controller) Destroy() {
	if c.state == destroyed {
		return
	}
	c.state = destroyed
	if c.cancel != nil {
		c.cancel()
	}
	c.releaseTiles()
	c.tiles = nil
	c.cols = 0
	c.notify()
}

// State returns a snapshot of the current grid. The tile slice is a copy;
// images are shared with the controller and must not be released by the
// caller.
func (c *Controller) State() TiledDocumentState {
	tiles := make([]TileDescriptor, len(c.tiles))
	copy(tiles, c.tiles)
	return TiledDocumentState{
		DocumentID:    c.id,
		CurrentLod:    c.lod,
		LogicalWidth:  c.logicalWidth,
		LogicalHeight: c.logicalHeight,
		Generation:    c.generation,
		Tiles:         tiles,
	}
}

// Stats counts the tiles of the current grid by state.
func (c *Controller) Stats() Stats {
	var s Stats
	for i := range c.tiles {
		switch c.tiles[i].State {
		case Pending:
			s.Pending++
		case Loaded:
			s.Loaded++
		case Failed:
			s.Failed++
		}
	}
	return s
}

// install plans the grid for lod under the current generation and issues
// its loads.
func (c *Controller) install(lod Lod) {
	size := c.sizes[lod]
	tiles := PlanGrid(c.id, lod, size.Width, size.Height, c.opts.tileSize, c.opts.locate)
	for i := range tiles {
		tiles[i].Generation = c.generation
		tiles[i].DisplayRect = ScaleToLogical(tiles[i].PixelRect,
			size.Width, size.Height, c.logicalWidth, c.logicalHeight)
	}

	_, cols := GridShape(size.Width, size.Height, c.opts.tileSize)
	c.lod = lod
	c.tiles = tiles
	c.cols = cols
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.notify()

	// An inline executor resolves loads while this loop runs, and an
	// observer may trigger another transition from inside a resolution.
	gen, ctx := c.generation, c.ctx
	for _, t := range tiles {
		if c.state != ready || c.generation != gen {
			return
		}
		c.issue(ctx, t)
	}
}

// issue submits the load for t. The submitted function runs off the
// logical thread and touches nothing but its captured values.
func (c *Controller) issue(ctx context.Context, t TileDescriptor) {
	ref := TileRef{
		Coordinate: t.Coordinate,
		Generation: t.Generation,
		Locator:    t.Locator,
	}
	src := c.src
	dispatcher := c.opts.dispatcher

	c.opts.executor.Submit(func() {
		img, err := src.Load(ctx, ref.Locator)
		res := LoadResult{Image: img, Err: err}
		if !dispatcher.Post(func() { c.OnTileLoadResolved(ref, res) }) {
			release(img)
		}
	})
}

func (c *Controller) indexOf(coord TileCoordinate) int {
	if c.cols == 0 || coord.Row < 0 || coord.Col < 0 || coord.Col >= c.cols {
		return -1
	}
	i := coord.Row*c.cols + coord.Col
	if i >= len(c.tiles) {
		return -1
	}
	return i
}

func (c *Controller) releaseTiles() {
	for i := range c.tiles {
		release(c.tiles[i].Image)
		c.tiles[i].Image = nil
	}
}

func (c *Controller) notify() {
	if c.opts.observer != nil {
		c.opts.observer(c.State())
	}
}
