// Command tiledemo places documents side by side, zooms the viewport and
// renders the result to a PNG.
//
// Tiles are read from a directory written by tilegen, from Redis, or
// fetched from a running tileserve (-server, with -chunks matching its
// -prefix). Loads run on a worker pool and are applied on a
// single event loop, so rapid zoom steps exercise stale-result discarding.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/gogpu/tiledoc"
	"github.com/gogpu/tiledoc/blob"
	"github.com/gogpu/tiledoc/cache"
	"github.com/gogpu/tiledoc/internal/parallel"
	"github.com/gogpu/tiledoc/internal/server"
	"github.com/gogpu/tiledoc/present"
	"github.com/gogpu/tiledoc/pyramid"
	"github.com/gogpu/tiledoc/source"
)

func main() {
	os.Exit(execute())
}

// execute runs the command and returns its exit code, so deferred
// cleanup runs before the process exits.
func execute() int {
	var (
		from    origin
		zoom    = flag.String("zoom", "1,8,2", "comma-separated viewport scales applied in order")
		width   = flag.Int("width", 1200, "output width in pixels")
		height  = flag.Int("height", 800, "output height in pixels")
		output  = flag.String("output", "tiledemo.png", "output file")
		workers = flag.Int("workers", 8, "loader goroutines")
		latency = flag.Duration("latency", 0, "emulated random latency upper bound")
		cacheMB = flag.Int64("cache", cache.DefaultBudget>>20, "decoded tile cache in MiB")
		debug   = flag.Bool("debug", false, "draw tile borders and labels")
		timeout = flag.Duration("timeout", 30*time.Second, "wait for tiles at most this long")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.StringVar(&from.dir, "dir", "_generated/chunks", "tile directory with catalog.json")
	flag.StringVar(&from.server, "server", "", "tileserve base URL; overrides -dir")
	flag.StringVar(&from.chunks, "chunks", server.DefaultChunkPrefix, "path tileserve serves tiles under")
	flag.StringVar(&from.redisURL, "redis", "", "Redis URL written by tilegen -redis; overrides -dir")
	flag.StringVar(&from.prefix, "prefix", "", "Redis key prefix used by tilegen")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	tiledoc.SetLogger(log)

	scales, err := parseScales(*zoom)
	if err != nil {
		log.Error("bad -zoom", "error", err)
		return 2
	}

	cat, src, closeSrc, err := open(context.Background(), from)
	if err != nil {
		log.Error("open tiles", "error", err)
		return 1
	}
	defer closeSrc()

	tiles := cache.New[string, image.Image](*cacheMB<<20, cache.ImageCost)
	src = source.NewCached(source.NewLatency(src, *latency), tiles)

	cfg := demo{
		cat:     cat,
		src:     src,
		scales:  scales,
		width:   *width,
		height:  *height,
		workers: *workers,
		debug:   *debug,
		timeout: *timeout,
	}
	img, err := cfg.run()
	if err != nil {
		log.Error("tiledemo failed", "error", err)
		return 1
	}
	if err := save(*output, img); err != nil {
		log.Error("save", "error", err)
		return 1
	}
	st := tiles.Stats()
	log.Info("demo saved",
		"output", *output,
		"width", *width,
		"height", *height,
		"cache_hits", st.Hits,
		"cache_misses", st.Misses)
	return 0
}

type demo struct {
	cat     *tiledoc.Catalog
	src     tiledoc.TileSource
	scales  []float64
	width   int
	height  int
	workers int
	debug   bool
	timeout time.Duration
}

// run builds the scene on a loop, applies every zoom step, waits for the
// final grids to resolve and composites them.
func (d demo) run() (*image.RGBA, error) {
	loop := tiledoc.NewLoop()
	defer loop.Close()
	pool := parallel.NewWorkerPool(d.workers)
	defer pool.Close()

	var scene *tiledoc.Scene
	var addErr error
	loop.Do(func() {
		scene = tiledoc.NewScene(d.cat, d.src,
			tiledoc.WithExecutor(pool),
			tiledoc.WithDispatcher(loop),
			tiledoc.WithFailureSink(tiledoc.FailureSinkFunc(func(err *tiledoc.TileLoadError) {
				fmt.Fprintln(os.Stderr, "tile failed:", err)
			})))

		docs := d.cat.Documents()
		place := tiledoc.RowLayout(len(docs), tiledoc.DefaultOriginX, tiledoc.DefaultOriginY,
			tiledoc.DefaultDocumentWidth, tiledoc.DefaultDocumentGap)
		for i, doc := range docs {
			id := tiledoc.InstanceID(fmt.Sprintf("%d-%s", i, doc))
			if _, err := scene.Add(id, doc, place[i].X, place[i].Y, tiledoc.DefaultDocumentWidth); err != nil {
				addErr = err
				return
			}
		}
	})
	defer loop.Do(func() { scene.Close() })
	if addErr != nil {
		return nil, addErr
	}

	scale := 1.0
	for _, s := range d.scales {
		scale = s
		loop.Do(func() { scene.ZoomSettled(s) })
	}

	if err := waitSettled(loop, scene, d.timeout); err != nil {
		return nil, err
	}

	var opts []present.Option
	if d.debug {
		opts = append(opts, present.WithDebugOverlay(true))
	}
	comp, err := present.New(opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = comp.Close() }()

	dst := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(present.DefaultBackground), image.Point{}, draw.Src)
	loop.Do(func() { comp.DrawScene(dst, scene, scale, tiledoc.Placement{}) })
	return dst, nil
}

// waitSettled polls the scene until no tile is pending.
func waitSettled(loop *tiledoc.Loop, scene *tiledoc.Scene, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		var pending int
		loop.Do(func() {
			for _, in := range scene.Instances() {
				pending += in.Controller.Stats().Pending
			}
		})
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d tiles still pending: %w", pending, ctx.Err())
		case <-tick.C:
		}
	}
}

// origin says where tiles come from: a Redis store, a running tileserve,
// or a directory, in that order of precedence.
type origin struct {
	dir      string
	server   string
	chunks   string
	redisURL string
	prefix   string
}

// open loads the catalog and picks the tile source. The returned func
// releases the source's connections.
func open(ctx context.Context, o origin) (*tiledoc.Catalog, tiledoc.TileSource, func(), error) {
	nop := func() {}
	switch {
	case o.redisURL != "":
		var opts []blob.RedisOption
		if o.prefix != "" {
			opts = append(opts, blob.WithPrefix(o.prefix))
		}
		store, err := blob.NewRedis(ctx, o.redisURL, opts...)
		if err != nil {
			return nil, nil, nil, err
		}
		closeStore := func() { _ = store.Close() }
		data, err := store.Get(ctx, pyramid.CatalogFile)
		if err != nil {
			closeStore()
			return nil, nil, nil, fmt.Errorf("fetch catalog: %w", err)
		}
		cat, err := tiledoc.LoadCatalog(bytes.NewReader(data))
		if err != nil {
			closeStore()
			return nil, nil, nil, err
		}
		return cat, source.NewBlob(store), closeStore, nil
	case o.server == "":
		cat, err := tiledoc.LoadCatalogFile(filepath.Join(o.dir, pyramid.CatalogFile))
		if err != nil {
			return nil, nil, nil, err
		}
		return cat, source.NewDir(o.dir), nop, nil
	}

	base := strings.TrimRight(o.server, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/catalog", nil)
	if err != nil {
		return nil, nil, nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, nil, fmt.Errorf("fetch catalog: %s", resp.Status)
	}
	cat, err := tiledoc.LoadCatalog(resp.Body)
	if err != nil {
		return nil, nil, nil, err
	}
	chunks := "/" + strings.Trim(o.chunks, "/")
	return cat, source.NewHTTP(base + chunks), nop, nil
}

func parseScales(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("scale %v must be positive", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scales in %q", s)
	}
	return out, nil
}

func save(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
