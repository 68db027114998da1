package tiledoc

import (
	"context"
	"errors"
	"image"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/tiledoc/internal/parallel"
)

func newManual(t *testing.T, doc DocumentID, src TileSource, opts ...Option) (*Controller, *manualExecutor) {
	t.Helper()
	exec := &manualExecutor{}
	all := append([]Option{WithExecutor(exec)}, opts...)
	c, err := NewController(testCatalog(t), doc, src, all...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, exec
}

// =============================================================================
// Construction
// =============================================================================

func TestNewController_IssuesLoads(t *testing.T) {
	src := &fakeSource{}
	c, exec := newManual(t, sheet, src, WithInitialLod(3))

	if len(exec.queue) != 6 {
		t.Fatalf("queued loads = %d, want 6", len(exec.queue))
	}
	st := c.State()
	if st.CurrentLod != 3 || st.Generation != 0 || len(st.Tiles) != 6 {
		t.Errorf("state = lod %d gen %d tiles %d", st.CurrentLod, st.Generation, len(st.Tiles))
	}
	if st.LogicalWidth != 2483 || st.LogicalHeight != 1754 {
		t.Errorf("logical size = %gx%g, want 2483x1754", st.LogicalWidth, st.LogicalHeight)
	}
	for _, tile := range st.Tiles {
		if tile.State != Pending {
			t.Errorf("tile %+v state = %v, want pending", tile.Coordinate, tile.State)
		}
	}
	if src.calls.Load() != 0 {
		t.Errorf("source called %d times before the executor ran", src.calls.Load())
	}
}

func TestNewController_DefaultLogicalSize(t *testing.T) {
	c, _ := newManual(t, kandinsky, &fakeSource{})
	w, h := c.LogicalSize()
	if w != 102 || h != 71 {
		t.Errorf("LogicalSize() = %gx%g, want 102x71", w, h)
	}
	if c.Lod() != 0 {
		t.Errorf("Lod() = %d, want 0", c.Lod())
	}
}

func TestNewController_ExplicitLogicalSize(t *testing.T) {
	c, _ := newManual(t, sheet, &fakeSource{}, WithLogicalSize(200, 141))
	w, h := c.LogicalSize()
	if w != 200 || h != 141 {
		t.Errorf("LogicalSize() = %gx%g, want 200x141", w, h)
	}
	last := c.State().Tiles[0]
	if last.DisplayRect != (DisplayRect{X: 0, Y: 0, W: 200, H: 141}) {
		t.Errorf("single tile display rect = %+v, want the whole footprint", last.DisplayRect)
	}
}

func TestNewController_AutoInitialLod(t *testing.T) {
	c, exec := newManual(t, sheet, &fakeSource{}, WithAutoInitialLod(1000))
	if c.Lod() != 2 {
		t.Errorf("Lod() = %d, want 2", c.Lod())
	}
	if len(exec.queue) != 2 {
		t.Errorf("queued loads = %d, want 2 for 1192x842", len(exec.queue))
	}
}

func TestNewController_ConfigErrors(t *testing.T) {
	cat := testCatalog(t)
	src := &fakeSource{}

	tests := []struct {
		name    string
		cat     *Catalog
		doc     DocumentID
		src     TileSource
		opts    []Option
		wantErr error
	}{
		{"unknown document", cat, "nope", src, nil, ErrUnknownDocument},
		{"lod too high", cat, sheet, src, []Option{WithInitialLod(6)}, ErrLodOutOfRange},
		{"lod negative", cat, sheet, src, []Option{WithInitialLod(-1)}, ErrLodOutOfRange},
		{"zero tile size", cat, sheet, src, []Option{WithTileSize(0)}, ErrBadSize},
		{"bad logical size", cat, sheet, src, []Option{WithLogicalSize(0, 10)}, ErrBadSize},
		{"nil source", cat, sheet, nil, nil, nil},
		{"nil catalog", nil, sheet, src, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewController(tt.cat, tt.doc, tt.src, tt.opts...)
			if c != nil {
				t.Error("controller returned with an error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Zoom transitions
// =============================================================================

func TestOnZoomSettled_Idempotent(t *testing.T) {
	c, exec := newManual(t, sheet, &fakeSource{})

	if c.OnZoomSettled(250) {
		t.Error("width 250 maps to lod 0; OnZoomSettled must report no change")
	}
	if len(exec.queue) != 1 || c.Generation() != 0 {
		t.Fatalf("no-op zoom issued loads: queue %d gen %d", len(exec.queue), c.Generation())
	}

	if !c.OnZoomSettled(500) {
		t.Fatal("width 500 should move to lod 1")
	}
	before := c.State()
	queued := len(exec.queue)

	for _, w := range []float64{500, 550, 596, 320} {
		if c.OnZoomSettled(w) {
			t.Errorf("OnZoomSettled(%v) changed level", w)
		}
	}
	after := c.State()
	if after.Generation != before.Generation || len(exec.queue) != queued {
		t.Errorf("repeated zoom mutated grid: gen %d->%d, queue %d->%d",
			before.Generation, after.Generation, queued, len(exec.queue))
	}
}

func TestOnZoomSettled_KeepsLogicalSize(t *testing.T) {
	c, exec := newManual(t, sheet, &fakeSource{}, WithInitialLod(1))
	w0, h0 := c.LogicalSize()

	for _, w := range []float64{10000, 100, 2000, 5000, 700, 1, 9933} {
		c.OnZoomSettled(w)
		exec.runAll()

		st := c.State()
		if st.LogicalWidth != w0 || st.LogicalHeight != h0 {
			t.Fatalf("after zoom to %v logical size = %gx%g, want %gx%g",
				w, st.LogicalWidth, st.LogicalHeight, w0, h0)
		}

		// The grid always spans exactly the footprint.
		var right, bottom float64
		for _, tile := range st.Tiles {
			right = max(right, tile.DisplayRect.X+tile.DisplayRect.W)
			bottom = max(bottom, tile.DisplayRect.Y+tile.DisplayRect.H)
		}
		if abs(right-w0) > 1e-6 || abs(bottom-h0) > 1e-6 {
			t.Errorf("lod %d grid spans %gx%g, want %gx%g", st.CurrentLod, right, bottom, w0, h0)
		}
	}
}

func TestOnZoomSettled_StaleResultsIgnored(t *testing.T) {
	src := &fakeSource{}
	c, exec := newManual(t, sheet, src, WithInitialLod(1))
	if len(exec.queue) != 1 {
		t.Fatalf("lod 1 queued %d loads, want 1", len(exec.queue))
	}

	if !c.OnZoomSettled(2000) {
		t.Fatal("width 2000 should move to lod 3")
	}
	if c.Lod() != 3 || c.Generation() != 1 {
		t.Fatalf("lod %d gen %d, want lod 3 gen 1", c.Lod(), c.Generation())
	}
	if len(exec.queue) != 7 {
		t.Fatalf("queued loads = %d, want 1 stale + 6 new", len(exec.queue))
	}

	// The generation-0 load resolves after the transition.
	exec.run(0)

	st := c.State()
	for _, tile := range st.Tiles {
		if tile.State != Pending || tile.Image != nil || tile.Generation != 1 {
			t.Errorf("stale result touched tile %+v: state %v gen %d", tile.Coordinate, tile.State, tile.Generation)
		}
	}
	if src.released.Load() != 1 {
		t.Errorf("stale image released %d times, want 1", src.released.Load())
	}

	exec.runAll()
	if s := c.Stats(); s.Loaded != 6 {
		t.Errorf("Stats() = %+v, want 6 loaded", s)
	}
}

func TestOnZoomSettled_CancelsPreviousGeneration(t *testing.T) {
	var ctxs []context.Context
	src := TileSourceFunc(func(ctx context.Context, locator string) (image.Image, error) {
		ctxs = append(ctxs, ctx)
		return nil, ctx.Err()
	})
	c, exec := newManual(t, sheet, src)

	c.OnZoomSettled(5000)
	exec.run(0) // generation 0 load runs after the transition

	if len(ctxs) != 1 || ctxs[0].Err() == nil {
		t.Fatal("generation 0 load should see a cancelled context")
	}
	if c.Stats().Failed != 0 {
		t.Error("a cancelled stale load must not mark a tile failed")
	}
}

func TestOnZoomSettled_ReleasesOldTiles(t *testing.T) {
	src := &fakeSource{}
	c, exec := newManual(t, sheet, src, WithInitialLod(3))
	exec.runAll()
	if c.Stats().Loaded != 6 {
		t.Fatalf("Stats() = %+v", c.Stats())
	}

	c.OnZoomSettled(100)
	if src.released.Load() != 6 {
		t.Errorf("released = %d, want 6", src.released.Load())
	}
}

// =============================================================================
// Load resolution
// =============================================================================

func TestOnTileLoadResolved_AnyOrder(t *testing.T) {
	orders := [][]int{
		{0, 1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1, 0},
		{3, 0, 5, 1, 4, 2},
	}
	for _, order := range orders {
		c, exec := newManual(t, sheet, &fakeSource{}, WithInitialLod(3))
		fns := append([]func(){}, exec.queue...)
		exec.queue = nil
		for _, i := range order {
			fns[i]()
		}

		st := c.State()
		for _, tile := range st.Tiles {
			if tile.State != Loaded || tile.Image == nil {
				t.Errorf("order %v: tile %+v state %v", order, tile.Coordinate, tile.State)
			}
		}
	}
}

func TestOnTileLoadResolved_FailureIsolated(t *testing.T) {
	failing := DefaultLocator(sheet, 3, 1, 2)
	src := &fakeSource{fail: map[string]error{failing: errBoom}}

	var reported []*TileLoadError
	sink := FailureSinkFunc(func(err *TileLoadError) { reported = append(reported, err) })

	c, exec := newManual(t, sheet, src, WithInitialLod(3), WithFailureSink(sink))
	exec.runAll()

	s := c.Stats()
	if s.Loaded != 5 || s.Failed != 1 || s.Pending != 0 {
		t.Errorf("Stats() = %+v, want 5 loaded 1 failed", s)
	}
	if len(reported) != 1 {
		t.Fatalf("sink called %d times, want 1", len(reported))
	}

	got := reported[0]
	if got.DocumentID != sheet || got.Lod != 3 || got.Coordinate != (TileCoordinate{Row: 1, Col: 2}) {
		t.Errorf("reported %+v", got)
	}
	if !errors.Is(got, errBoom) {
		t.Errorf("reported error does not wrap the cause: %v", got)
	}

	tile := c.State().Tiles[5]
	if tile.State != Failed || !errors.Is(tile.Err, errBoom) || tile.Image != nil {
		t.Errorf("failed tile = %+v", tile)
	}
	if src.calls.Load() != 6 {
		t.Errorf("source calls = %d; failures must not be retried", src.calls.Load())
	}
}

func TestOnTileLoadResolved_NoImage(t *testing.T) {
	src := TileSourceFunc(func(ctx context.Context, locator string) (image.Image, error) {
		return nil, nil
	})
	c, exec := newManual(t, kandinsky, src)
	exec.runAll()

	tile := c.State().Tiles[0]
	if tile.State != Failed || !errors.Is(tile.Err, ErrNoImage) {
		t.Errorf("tile = %v %v, want failed with ErrNoImage", tile.State, tile.Err)
	}
}

func TestOnTileLoadResolved_Duplicate(t *testing.T) {
	src := &fakeSource{}
	c, exec := newManual(t, kandinsky, src)
	exec.runAll()

	first := c.State().Tiles[0].Image
	ref := TileRef{Coordinate: TileCoordinate{}, Generation: 0, Locator: "dup"}
	dup := countedImage{RGBA: image.NewRGBA(image.Rect(0, 0, 1, 1)), released: &src.released}
	c.OnTileLoadResolved(ref, LoadResult{Image: dup})

	if c.State().Tiles[0].Image != first {
		t.Error("second resolution replaced the tile image")
	}
	if src.released.Load() != 1 {
		t.Errorf("duplicate image released %d times, want 1", src.released.Load())
	}
}

func TestOnTileLoadResolved_UnknownCoordinate(t *testing.T) {
	c, exec := newManual(t, kandinsky, &fakeSource{})
	exec.runAll()

	for _, coord := range []TileCoordinate{{Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: -1, Col: 0}} {
		c.OnTileLoadResolved(TileRef{Coordinate: coord}, LoadResult{Err: errBoom})
	}
	if s := c.Stats(); s.Loaded != 1 || s.Failed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

// =============================================================================
// Retry, observer, destroy
// =============================================================================

func TestRetry(t *testing.T) {
	failing := DefaultLocator(sheet, 3, 0, 0)
	src := &fakeSource{fail: map[string]error{failing: errBoom}}
	c, exec := newManual(t, sheet, src, WithInitialLod(3))
	exec.runAll()

	if c.Retry(TileCoordinate{Row: 0, Col: 1}) {
		t.Error("Retry of a loaded tile should report false")
	}
	if c.Retry(TileCoordinate{Row: 9, Col: 9}) {
		t.Error("Retry of a missing tile should report false")
	}

	delete(src.fail, failing)
	if !c.Retry(TileCoordinate{}) {
		t.Fatal("Retry of a failed tile should report true")
	}
	if tile := c.State().Tiles[0]; tile.State != Pending || tile.Err != nil {
		t.Errorf("retried tile = %v %v, want pending", tile.State, tile.Err)
	}

	exec.runAll()
	if s := c.Stats(); s.Loaded != 6 {
		t.Errorf("Stats() = %+v, want 6 loaded", s)
	}
}

func TestRetry_ObserverReplacesGrid(t *testing.T) {
	tests := []struct {
		name      string
		react     func(c *Controller)
		wantQueue int
		wantLod   Lod
	}{
		{"zoom out", func(c *Controller) { c.OnZoomSettled(100) }, 1, 0},
		{"destroy", func(c *Controller) { c.Destroy() }, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing := DefaultLocator(sheet, 3, 1, 2)
			src := &fakeSource{fail: map[string]error{failing: errBoom}}

			var c *Controller
			armed := false
			c, exec := newManual(t, sheet, src, WithInitialLod(3), WithObserver(func(TiledDocumentState) {
				if armed {
					armed = false
					tt.react(c)
				}
			}))
			exec.runAll()
			delete(src.fail, failing)

			armed = true
			if !c.Retry(TileCoordinate{Row: 1, Col: 2}) {
				t.Fatal("Retry of a failed tile should report true")
			}
			if len(exec.queue) != tt.wantQueue {
				t.Errorf("queued loads = %d, want %d", len(exec.queue), tt.wantQueue)
			}
			if c.Lod() != tt.wantLod {
				t.Errorf("Lod() = %d, want %d", c.Lod(), tt.wantLod)
			}

			exec.runAll()
			if got := src.calls.Load(); got != int64(6+tt.wantQueue) {
				t.Errorf("source calls = %d, want %d", got, 6+tt.wantQueue)
			}
		})
	}
}

func TestObserver(t *testing.T) {
	var snaps []TiledDocumentState
	c, exec := newManual(t, sheet, &fakeSource{}, WithObserver(func(s TiledDocumentState) {
		snaps = append(snaps, s)
	}))

	if len(snaps) != 1 || snaps[0].Tiles[0].State != Pending {
		t.Fatalf("construction snapshots = %d", len(snaps))
	}
	exec.runAll()
	if len(snaps) != 2 || snaps[1].Tiles[0].State != Loaded {
		t.Fatalf("after load snapshots = %d", len(snaps))
	}

	c.OnZoomSettled(250) // same level
	if len(snaps) != 2 {
		t.Error("no-op zoom notified the observer")
	}

	c.Destroy()
	if last := snaps[len(snaps)-1]; len(last.Tiles) != 0 {
		t.Errorf("destroy snapshot has %d tiles", len(last.Tiles))
	}
}

func TestDestroy(t *testing.T) {
	src := &fakeSource{}
	c, exec := newManual(t, sheet, src, WithInitialLod(3))
	exec.run(0, 1)

	c.Destroy()
	if !c.Destroyed() {
		t.Fatal("Destroyed() = false")
	}
	if src.released.Load() != 2 {
		t.Errorf("released = %d, want 2 loaded tiles", src.released.Load())
	}

	// Outstanding loads resolve after destruction.
	exec.runAll()
	if src.released.Load() != 6 {
		t.Errorf("released = %d, want 6 after late results", src.released.Load())
	}
	if len(c.State().Tiles) != 0 {
		t.Error("destroyed controller still has tiles")
	}

	if c.OnZoomSettled(9999) {
		t.Error("OnZoomSettled on a destroyed controller reported a change")
	}
	if c.Retry(TileCoordinate{}) {
		t.Error("Retry on a destroyed controller reported true")
	}
	if len(exec.queue) != 0 {
		t.Error("destroyed controller issued loads")
	}
	c.Destroy()
}

// =============================================================================
// Concurrent loading through a Loop
// =============================================================================

func TestController_LoopAndPool(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()
	pool := parallel.NewWorkerPool(4)
	defer pool.Close()

	var mu sync.Mutex
	rnd := rand.New(rand.NewPCG(1, 2))
	src := TileSourceFunc(func(ctx context.Context, locator string) (image.Image, error) {
		mu.Lock()
		d := time.Duration(rnd.IntN(3)) * time.Millisecond
		mu.Unlock()
		time.Sleep(d)
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	})

	var c *Controller
	var err error
	loop.Do(func() {
		c, err = NewController(testCatalog(t), sheet, src,
			WithExecutor(pool), WithDispatcher(loop), WithLogicalSize(200, 141))
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	// Rapid zooming while earlier generations are still loading.
	for _, w := range []float64{600, 5000, 1200, 9000, 2400, 4000} {
		loop.Do(func() { c.OnZoomSettled(w) })
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		var st TiledDocumentState
		var s Stats
		loop.Do(func() {
			st = c.State()
			s = c.Stats()
		})
		if s.Pending == 0 {
			if st.CurrentLod != 4 || st.Generation != 6 {
				t.Errorf("final lod %d gen %d, want lod 4 gen 6", st.CurrentLod, st.Generation)
			}
			if s.Loaded != 20 {
				t.Errorf("Stats() = %+v, want 20 loaded", s)
			}
			for _, tile := range st.Tiles {
				if tile.Generation != st.Generation {
					t.Errorf("tile %+v from generation %d", tile.Coordinate, tile.Generation)
				}
			}
			if st.LogicalWidth != 200 || st.LogicalHeight != 141 {
				t.Errorf("logical size changed to %gx%g", st.LogicalWidth, st.LogicalHeight)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tiles still pending: %+v", s)
		}
		time.Sleep(time.Millisecond)
	}

	loop.Do(c.Destroy)
}
