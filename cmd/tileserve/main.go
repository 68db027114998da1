// Command tileserve serves tile pyramids written by tilegen.
//
// Settings come from TILESERVE_* environment variables; flags override
// them.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/tiledoc"
	"github.com/gogpu/tiledoc/internal/server"
)

func main() {
	cfg := server.LoadConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.Root, "root", cfg.Root, "tile directory")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "catalog file (default <root>/catalog.json)")
	flag.StringVar(&cfg.ChunkPrefix, "prefix", cfg.ChunkPrefix, "URL path tiles are served under")
	flag.DurationVar(&cfg.MaxLatency, "latency", cfg.MaxLatency, "emulated random latency upper bound")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	tiledoc.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		stop()
		log.Error("tileserve failed", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg server.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := tiledoc.LoadCatalogFile(cfg.CatalogFile())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.New(cat, log, cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("tileserve listening",
			"addr", cfg.Addr,
			"root", cfg.Root,
			"documents", len(cat.Documents()),
			"levels", cat.Levels())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
