package tiledoc

// Option configures a Controller during creation.
//
// Example:
//
//	// Synchronous loads, LOD 0, logical size taken from the catalog
//	ctrl, err := tiledoc.NewController(cat, id, src)
//
//	// Loads on a worker pool, results delivered on a Loop
//	ctrl, err := tiledoc.NewController(cat, id, src,
//		tiledoc.WithExecutor(pool),
//		tiledoc.WithDispatcher(loop),
//		tiledoc.WithLogicalSize(200, 141))
type Option func(*options)

type options struct {
	initialLod     Lod
	autoLod        bool
	autoWidth      float64
	logicalWidth   float64
	logicalHeight  float64
	hasLogicalSize bool
	tileSize       int
	locate         Locator
	sink           FailureSink
	dispatcher     Dispatcher
	executor       Executor
	observer       func(TiledDocumentState)
}

func defaultOptions() options {
	return options{
		tileSize:   DefaultTileSize,
		locate:     DefaultLocator,
		dispatcher: InlineDispatcher{},
		executor:   InlineExecutor{},
	}
}

// WithInitialLod sets the level planned at construction. Default 0.
func WithInitialLod(lod Lod) Option {
	return func(o *options) {
		o.initialLod = lod
		o.autoLod = false
	}
}

// WithAutoInitialLod chooses the initial level with SelectLod for the
// instance's on-screen width at creation time.
func WithAutoInitialLod(onScreenWidth float64) Option {
	return func(o *options) {
		o.autoLod = true
		o.autoWidth = onScreenWidth
	}
}

// WithLogicalSize fixes the logical footprint explicitly. By default it is
// the native size of the initial level.
func WithLogicalSize(width, height float64) Option {
	return func(o *options) {
		o.logicalWidth = width
		o.logicalHeight = height
		o.hasLogicalSize = true
	}
}

// WithTileSize sets the tile edge length in pixels. Default DefaultTileSize.
// The tiles on disk must have been cut with the same size.
func WithTileSize(size int) Option {
	return func(o *options) {
		o.tileSize = size
	}
}

// WithLocator sets the tile addressing scheme. Default DefaultLocator.
func WithLocator(l Locator) Option {
	return func(o *options) {
		if l != nil {
			o.locate = l
		}
	}
}

// WithFailureSink registers a sink for tile load failures.
// Failures are also logged at warn level.
func WithFailureSink(s FailureSink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithDispatcher sets how load results reach the controller's logical
// thread. Default InlineDispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) {
		if d != nil {
			o.dispatcher = d
		}
	}
}

// WithExecutor sets where blocking tile loads run. Default InlineExecutor.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		if e != nil {
			o.executor = e
		}
	}
}

// WithObserver registers fn to receive a snapshot after every visible
// change: grid replacement, tile resolution, retry and destruction.
// fn runs on the logical thread. It may call OnZoomSettled or Destroy;
// the controller re-checks its grid after every notification.
func WithObserver(fn func(TiledDocumentState)) Option {
	return func(o *options) {
		o.observer = fn
	}
}
