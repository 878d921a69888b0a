// Package server exposes the release cache over a local HTTP API for the
// browser dashboard: cache reads, scrape status, an SSE populate stream,
// viewed/starred state, and Bandcamp embed metadata proxying.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/bcfeed/bcfeed/internal/engine"
	"github.com/bcfeed/bcfeed/internal/store"
)

const pageFetchTimeout = 10 * time.Second

// Server holds the wiring for all dashboard routes.
type Server struct {
	logger  zerolog.Logger
	files   *store.FileStore
	engine  *engine.Engine
	dataDir string
	verbose bool
	client  *http.Client

	// fetcher, when set, replaces the Gmail-backed fetcher for populate runs.
	fetcher engine.Fetcher

	// populateMu single-flights populate runs across all connections.
	populateMu sync.Mutex

	now func() time.Time
}

// New builds a Server over the data directory's file store.
func New(logger zerolog.Logger, dataDir string, verbose bool) *Server {
	files := store.NewFileStore(dataDir)
	return &Server{
		logger:  logger,
		files:   files,
		engine:  engine.New(files),
		dataDir: dataDir,
		verbose: verbose,
		client:  &http.Client{Timeout: pageFetchTimeout},
		now:     time.Now,
	}
}

// SetFetcher replaces the Gmail-backed message fetcher for populate runs and
// skips the on-disk credentials pre-flight. Used by tests.
func (s *Server) SetFetcher(f engine.Fetcher) { s.fetcher = f }

// Router assembles the dashboard API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.AccessHandler(accessLogFn))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/config.json", s.handleConfig)
	r.Get("/releases", s.handleReleases)
	r.Get("/scrape-status", s.handleScrapeStatus)
	r.Get("/populate-range-stream", s.handlePopulateStream)
	r.Get("/viewed-state", s.handleViewedGet)
	r.Post("/viewed-state", s.handleViewedPost)
	r.Get("/starred-state", s.handleStarredGet)
	r.Post("/starred-state", s.handleStarredPost)
	r.Get("/embed-meta", s.handleEmbedMeta)
	r.Post("/reset-caches", s.handleResetCaches)
	r.Post("/clear-credentials", s.handleClearCredentials)

	return r
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	// The dashboard polls /health; logging it drowns everything else.
	if r.URL.Path == "/health" {
		return
	}
	hlog.FromRequest(r).Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

// corsMiddleware allows the dashboard to be served from file:// or another
// local origin. The API binds to loopback, so a permissive policy is fine.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
