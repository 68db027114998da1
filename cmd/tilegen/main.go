// Command tilegen cuts source images into LOD tile pyramids.
//
// Usage:
//
//	tilegen -out _generated/chunks [flags] [id=]image ...
//
// Each image becomes one document. Without an explicit id the file name
// without extension is used. catalog.json is written next to the tiles
// when every document is built.
//
// Tiles go to -out unless -redis or -s3-bucket selects a blob store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gogpu/tiledoc"
	"github.com/gogpu/tiledoc/blob"
	"github.com/gogpu/tiledoc/pyramid"
)

func main() {
	os.Exit(execute())
}

// execute runs the command and returns its exit code, so the store is
// closed on every path.
func execute() int {
	var (
		out     = flag.String("out", "_generated/chunks", "output directory")
		levels  = flag.Int("levels", pyramid.DefaultLevels, "levels per document")
		tile    = flag.Int("tile", tiledoc.DefaultTileSize, "tile size in pixels")
		workers = flag.Int("workers", 0, "encoder goroutines (0 = GOMAXPROCS)")
		verbose = flag.Bool("v", false, "debug logging")

		redisURL = flag.String("redis", "", "store tiles in Redis at this URL")
		prefix   = flag.String("prefix", "", "key prefix in Redis or S3")
		s3       blob.S3Config
	)
	flag.StringVar(&s3.Endpoint, "s3-endpoint", "localhost:9000", "S3 endpoint")
	flag.StringVar(&s3.Bucket, "s3-bucket", "", "store tiles in this S3 bucket")
	flag.StringVar(&s3.AccessKey, "s3-access-key", os.Getenv("S3_ACCESS_KEY"), "S3 access key")
	flag.StringVar(&s3.SecretKey, "s3-secret-key", os.Getenv("S3_SECRET_KEY"), "S3 secret key")
	flag.BoolVar(&s3.UseSSL, "s3-ssl", false, "use TLS for S3")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	tiledoc.SetLogger(log)

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := []pyramid.Option{
		pyramid.WithLevels(*levels),
		pyramid.WithTileSize(*tile),
		pyramid.WithWorkers(*workers),
	}
	s3.Prefix = *prefix
	store, closeStore, err := openStore(ctx, *redisURL, *prefix, s3)
	if err != nil {
		log.Error("open store", "error", err)
		return 1
	}
	defer closeStore()
	if store != nil {
		opts = append(opts, pyramid.WithStore(store))
	}

	if err := run(ctx, *out, flag.Args(), opts...); err != nil {
		log.Error("tilegen failed", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, out string, args []string, opts ...pyramid.Option) error {
	b, err := pyramid.NewBuilder(out, opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	for _, arg := range args {
		id, path := parseArg(arg)
		sizes, err := b.BuildFile(ctx, id, path)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Printf("%s: %s .. %s\n", id, sizes[0], sizes[len(sizes)-1])
	}
	return b.WriteCatalog(ctx)
}

// openStore returns the Redis or S3 store selected by the flags, or nil
// for plain directory output.
func openStore(ctx context.Context, redisURL, prefix string, s3 blob.S3Config) (blob.Store, func(), error) {
	switch {
	case redisURL != "":
		var opts []blob.RedisOption
		if prefix != "" {
			opts = append(opts, blob.WithPrefix(prefix))
		}
		r, err := blob.NewRedis(ctx, redisURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case s3.Bucket != "":
		s, err := blob.NewS3(s3)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	return nil, func() {}, nil
}

// parseArg splits "id=path". A bare path uses its base name as the id.
func parseArg(arg string) (tiledoc.DocumentID, string) {
	if id, path, ok := strings.Cut(arg, "="); ok && id != "" {
		return tiledoc.DocumentID(id), path
	}
	base := filepath.Base(arg)
	return tiledoc.DocumentID(strings.TrimSuffix(base, filepath.Ext(base))), arg
}
