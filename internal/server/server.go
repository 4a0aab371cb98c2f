// Package server provides the HTTP API for chunk search, ingestion and the diagnose proxy.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/diagnose"
	"github.com/BonelessWater/aura/internal/indexer"
	"github.com/BonelessWater/aura/internal/search"
	"github.com/BonelessWater/aura/internal/storage"
	"github.com/BonelessWater/aura/internal/watcher"
)

// Diagnoser classifies clinical text through the upstream inference server.
type Diagnoser interface {
	Diagnose(ctx context.Context, text string) (*diagnose.Result, error)
	DiagnoseBatch(ctx context.Context, texts []string) (*diagnose.BatchResult, error)
	Health(ctx context.Context) (map[string]any, error)
}

// Server is the HTTP server for the Aura API.
type Server struct {
	engine    *search.Engine
	indexer   *indexer.Indexer
	storage   storage.Storage
	diagnoser Diagnoser
	config    *config.Config
	logger    *zap.Logger
	router    chi.Router
	server    *http.Server

	watch      *watcher.Watcher
	configPath string
	configMu   sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher exposes watch directory management. When configPath is set, changes are saved to it.
func WithWatcher(w *watcher.Watcher, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies and builds its routes.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store storage.Storage,
	diagnoser Diagnoser,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		engine:    engine,
		indexer:   idx,
		storage:   store,
		diagnoser: diagnoser,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/chunks/search", s.handleSearch)
		r.Get("/chunks/{id}", s.handleGetChunk)
		r.Get("/sources", s.handleListSources)
		r.Post("/ingest", s.handleIngest)
		r.Delete("/sources", s.handleRemoveSource)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})

	r.Post("/diagnose", s.handleDiagnose)
	r.Post("/diagnose/batch", s.handleDiagnoseBatch)
	r.Get("/diagnose/health", s.handleDiagnoseHealth)

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs one line per request at Info.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
