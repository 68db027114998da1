package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the tile server settings.
type Config struct {
	Addr string

	// Root is the directory holding the generated tiles and catalog.json.
	Root        string
	CatalogPath string

	// ChunkPrefix is the URL path tiles are served under.
	ChunkPrefix string

	// Emulated latency for exercising out-of-order loading.
	MaxLatency time.Duration

	// CacheMaxAge is the Cache-Control max-age of tile responses, in seconds.
	CacheMaxAge int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() Config {
	cfg := Config{
		Addr: envOr("TILESERVE_ADDR", ":8090"),

		Root:        envOr("TILESERVE_ROOT", "_generated/chunks"),
		CatalogPath: os.Getenv("TILESERVE_CATALOG"),
		ChunkPrefix: envOr("TILESERVE_CHUNK_PREFIX", DefaultChunkPrefix),

		MaxLatency:  envDuration("TILESERVE_MAX_LATENCY", 0),
		CacheMaxAge: envInt("TILESERVE_CACHE_MAX_AGE", 86400),

		ReadTimeout:     envDuration("TILESERVE_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    envDuration("TILESERVE_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envDuration("TILESERVE_SHUTDOWN_TIMEOUT", 5*time.Second),
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.CacheMaxAge < 0 {
		cfg.CacheMaxAge = 0
	}

	return cfg
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("TILESERVE_ROOT is required")
	}
	if c.ChunkPrefix == "" || c.ChunkPrefix[0] != '/' {
		return fmt.Errorf("chunk prefix %q must start with /", c.ChunkPrefix)
	}
	if c.MaxLatency < 0 {
		return fmt.Errorf("negative max latency %v", c.MaxLatency)
	}
	return nil
}

// CatalogFile returns the catalog location, defaulting to catalog.json
// inside Root.
func (c Config) CatalogFile() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return filepath.Join(c.Root, "catalog.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
