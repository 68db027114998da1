package pyramid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG sources
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp" // register BMP sources
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF sources
	_ "golang.org/x/image/webp" // register WebP sources

	"github.com/gogpu/tiledoc"
	"github.com/gogpu/tiledoc/blob"
	"github.com/gogpu/tiledoc/internal/parallel"
)

// DefaultLevels is the number of levels built per document.
const DefaultLevels = 6

// CatalogFile is the name of the catalog written by WriteCatalog.
const CatalogFile = "catalog.json"

// ErrTooSmall is returned when the source cannot be halved often enough
// to produce strictly growing levels.
var ErrTooSmall = errors.New("pyramid: source too small for level count")

// Option configures a Builder.
type Option func(*options)

type options struct {
	levels   int
	tileSize int
	workers  int
	locate   tiledoc.Locator
	interp   draw.Interpolator
	encoder  png.Encoder
	store    blob.Store
}

func defaultOptions() options {
	return options{
		levels:   DefaultLevels,
		tileSize: tiledoc.DefaultTileSize,
		locate:   tiledoc.DefaultLocator,
		interp:   draw.CatmullRom,
		encoder:  png.Encoder{CompressionLevel: png.DefaultCompression},
	}
}

// WithLevels sets how many levels are built. Default DefaultLevels.
func WithLevels(n int) Option {
	return func(o *options) {
		o.levels = n
	}
}

// WithTileSize sets the tile edge length. Default tiledoc.DefaultTileSize.
func WithTileSize(size int) Option {
	return func(o *options) {
		o.tileSize = size
	}
}

// WithWorkers sets the number of encoder goroutines.
// Default 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLocator sets the path scheme tiles are written under.
// Default tiledoc.DefaultLocator.
func WithLocator(l tiledoc.Locator) Option {
	return func(o *options) {
		if l != nil {
			o.locate = l
		}
	}
}

// WithInterpolator sets the resampler used to shrink levels.
// Default draw.CatmullRom.
func WithInterpolator(i draw.Interpolator) Option {
	return func(o *options) {
		if i != nil {
			o.interp = i
		}
	}
}

// WithCompression sets the PNG compression level.
func WithCompression(level png.CompressionLevel) Option {
	return func(o *options) {
		o.encoder.CompressionLevel = level
	}
}

// WithStore writes tiles and the catalog to s instead of the root
// directory.
func WithStore(s blob.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// LevelSizes returns the sizes of n levels for a w x h source, smallest
// first. Each level is the next one halved and rounded; the last level
// is w x h.
func LevelSizes(w, h, n int) ([]tiledoc.Size, error) {
	if w <= 0 || h <= 0 || n <= 0 {
		return nil, fmt.Errorf("%w: %dx%d, %d levels", tiledoc.ErrBadSize, w, h, n)
	}
	sizes := make([]tiledoc.Size, n)
	for i := range sizes {
		div := math.Exp2(float64(n - 1 - i))
		sizes[i] = tiledoc.Size{
			Width:  max(1, int(math.Round(float64(w)/div))),
			Height: max(1, int(math.Round(float64(h)/div))),
		}
		if i > 0 && sizes[i].Width <= sizes[i-1].Width {
			return nil, fmt.Errorf("%w: %dx%d, %d levels", ErrTooSmall, w, h, n)
		}
	}
	return sizes, nil
}

// Builder writes tile pyramids to a blob store, by default files below a
// root directory.
//
// Thread safety: Build may be called from several goroutines; documents
// are recorded under a mutex.
type Builder struct {
	root  string
	opts  options
	store blob.Store
	pool  *parallel.WorkerPool

	mu    sync.Mutex
	sizes map[tiledoc.DocumentID][]tiledoc.Size
}

// NewBuilder creates a builder writing below root.
// Close must be called to stop its workers.
func NewBuilder(root string, opts ...Option) (*Builder, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.levels <= 0 || o.tileSize <= 0 {
		return nil, fmt.Errorf("%w: %d levels, tile size %d", tiledoc.ErrBadSize, o.levels, o.tileSize)
	}
	root = filepath.Clean(root)
	store := o.store
	if store == nil {
		store = blob.NewDir(root)
	}
	return &Builder{
		root:  root,
		opts:  o,
		store: store,
		pool:  parallel.NewWorkerPool(o.workers),
		sizes: make(map[tiledoc.DocumentID][]tiledoc.Size),
	}, nil
}

// Close stops the encoder workers.
func (b *Builder) Close() {
	b.pool.Close()
}

// Root returns the output directory. It is unused when a store was
// configured with WithStore.
func (b *Builder) Root() string {
	return b.root
}

// Build resamples src into the level chain of document id and writes
// every tile. It returns the level sizes, smallest first.
//
// Levels are derived from each other, largest first, so each resampling
// step halves the image. ctx is checked between tiles.
func (b *Builder) Build(ctx context.Context, id tiledoc.DocumentID, src image.Image) ([]tiledoc.Size, error) {
	bounds := src.Bounds()
	sizes, err := LevelSizes(bounds.Dx(), bounds.Dy(), b.opts.levels)
	if err != nil {
		return nil, err
	}

	level := src
	for i := len(sizes) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i < len(sizes)-1 {
			level = b.scale(level, sizes[i])
		}
		if err := b.writeLevel(ctx, id, tiledoc.Lod(i), level); err != nil {
			return nil, err
		}
		tiledoc.Logger().Debug("pyramid: level written",
			slog.String("document", string(id)),
			slog.Int("lod", i),
			slog.String("size", sizes[i].String()))
	}

	b.mu.Lock()
	b.sizes[id] = sizes
	b.mu.Unlock()

	tiledoc.Logger().Info("pyramid: document built",
		slog.String("document", string(id)),
		slog.Int("levels", len(sizes)))
	return sizes, nil
}

// BuildFile decodes the image at path and builds it as document id.
func (b *Builder) BuildFile(ctx context.Context, id tiledoc.DocumentID, path string) ([]tiledoc.Size, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("pyramid: open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("pyramid: decode %s: %w", path, err)
	}
	return b.Build(ctx, id, img)
}

// Catalog returns a catalog of every document built so far.
func (b *Builder) Catalog() (*tiledoc.Catalog, error) {
	b.mu.Lock()
	docs := make(map[tiledoc.DocumentID][]tiledoc.Size, len(b.sizes))
	for id, s := range b.sizes {
		docs[id] = s
	}
	b.mu.Unlock()
	return tiledoc.NewCatalog(docs)
}

// WriteCatalog saves the catalog under CatalogFile next to the tiles.
func (b *Builder) WriteCatalog(ctx context.Context) error {
	cat, err := b.Catalog()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := cat.WriteJSON(&buf); err != nil {
		return err
	}
	if err := b.store.Put(ctx, CatalogFile, buf.Bytes()); err != nil {
		return fmt.Errorf("pyramid: write catalog: %w", err)
	}
	return nil
}

// scale resamples img to size.
func (b *Builder) scale(img image.Image, size tiledoc.Size) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	b.opts.interp.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// writeLevel cuts img into tiles and encodes them on the pool.
func (b *Builder) writeLevel(ctx context.Context, id tiledoc.DocumentID, lod tiledoc.Lod, img image.Image) error {
	bounds := img.Bounds()
	tiles := tiledoc.PlanGrid(id, lod, bounds.Dx(), bounds.Dy(), b.opts.tileSize, b.opts.locate)

	errs := make([]error, len(tiles))
	work := make([]func(), len(tiles))
	for i, t := range tiles {
		work[i] = func() {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			r := t.PixelRect.Image().Add(bounds.Min)
			errs[i] = b.writeTile(ctx, t.Locator, subImage(img, r))
		}
	}
	b.pool.ExecuteAll(work)
	return errors.Join(errs...)
}

func (b *Builder) writeTile(ctx context.Context, locator string, img image.Image) error {
	var buf bytes.Buffer
	if err := b.opts.encoder.Encode(&buf, img); err != nil {
		return fmt.Errorf("pyramid: encode %s: %w", locator, err)
	}
	if err := b.store.Put(ctx, locator, buf.Bytes()); err != nil {
		return fmt.Errorf("pyramid: write tile: %w", err)
	}
	return nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// subImage returns the r portion of img, copying only if img cannot
// share its pixels.
func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
