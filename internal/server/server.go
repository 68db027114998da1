// Package server serves generated tile pyramids and their catalog over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gogpu/tiledoc"
)

// DefaultChunkPrefix is the URL path tiles are served under.
const DefaultChunkPrefix = "/chunks"

// Server is the HTTP tile server.
type Server struct {
	router chi.Router
	cat    *tiledoc.Catalog
	log    *slog.Logger
	cfg    Config

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

// New creates the server. Tiles are read below cfg.Root; locators in
// request paths are the escaped paths tiledoc.DefaultLocator produces
// and match the on-disk names pyramid writes. A nil log uses
// tiledoc.Logger().
func New(cat *tiledoc.Catalog, log *slog.Logger, cfg Config) *Server {
	if log == nil {
		log = tiledoc.Logger()
	}
	s := &Server{
		cat:   cat,
		log:   log,
		cfg:   cfg,
		sleep: time.Sleep,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/catalog", s.handleCatalog)
	r.Get("/catalog/{docID}", s.handleDocument)
	r.Get(strings.TrimSuffix(s.cfg.ChunkPrefix, "/")+"/*", s.handleTile)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.cat.WriteJSON(w); err != nil {
		s.log.Error("write catalog", "error", err)
	}
}

// handleDocument returns the levels of one document.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := tiledoc.DocumentID(chi.URLParam(r, "docID"))
	sizes, err := s.cat.Sizes(id)
	if err != nil {
		jsonError(w, "unknown document", http.StatusNotFound)
		return
	}

	levels := make([]string, len(sizes))
	for i, e := range sizes {
		levels[i] = tiledoc.Size{Width: e.Width, Height: e.Height}.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"levels": levels,
	})
}

// handleTile serves one tile file. The escaped request path is used as
// the file name so locators round-trip unchanged.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSuffix(s.cfg.ChunkPrefix, "/") + "/"
	locator := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	if locator == "" || locator != path.Clean(locator) || strings.HasPrefix(locator, "..") {
		jsonError(w, "bad tile path", http.StatusBadRequest)
		return
	}

	if s.cfg.MaxLatency > 0 {
		s.sleep(rand.N(s.cfg.MaxLatency))
	}

	f, err := os.OpenInRoot(s.cfg.Root, filepath.FromSlash(locator))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			jsonError(w, "tile not found", http.StatusNotFound)
			return
		}
		s.log.Warn("open tile", "locator", locator, "error", err)
		jsonError(w, "tile unavailable", http.StatusForbidden)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		jsonError(w, "tile not found", http.StatusNotFound)
		return
	}

	if s.cfg.CacheMaxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(s.cfg.CacheMaxAge))
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
