// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes analysis, retrieval, and cache administration
// over HTTP. Routes live under /api/v1; /health and /ping are also served
// at the root for load balancers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/analyze"
	"github.com/pdiddy/bioanalyzer/internal/cache"
	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/metrics"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

const (
	// APIPrefix is where every route is mounted.
	APIPrefix = "/api/v1"

	maxBodyBytes = 1 << 20

	// maxBatch caps the identifiers accepted by one batch request.
	maxBatch = 100
)

// Analyzer runs analyses.
type Analyzer interface {
	AnalyzePaper(ctx context.Context, id types.PaperID, opts analyze.Options) analyze.Outcome
	AnalyzeBatch(ctx context.Context, ids []types.PaperID, opts analyze.Options) analyze.Batch
}

// Retriever fetches paper content and checks NCBI reachability.
type Retriever interface {
	FetchCombined(ctx context.Context, id types.PaperID) types.PaperContent
	Probe(ctx context.Context) error
}

// LLM reports on the configured model backend.
type LLM interface {
	Enabled() bool
	Model() string
	Probe(ctx context.Context) error
}

// Cache is the administrative surface of the result cache.
type Cache interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Search(ctx context.Context, query string, limit int) ([]cache.Entry, error)
	Delete(ctx context.Context, kind cache.Kind, id types.PaperID) bool
	ClearAll(ctx context.Context) bool
	Sweep(ctx context.Context, maxAge time.Duration) int
}

// Deps are the components the server delegates to. Cache may be nil, in
// which case the cache routes answer 503.
type Deps struct {
	Analyzer  Analyzer
	Retriever Retriever
	LLM       LLM
	Cache     Cache
	Version   string
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	cfg     types.Config
	log     *zap.Logger
	started time.Time
	router  chi.Router
}

// New builds the server and its routes.
func New(deps Deps, cfg types.Config, log *zap.Logger) *Server {
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = types.DefaultConfig().Server.RequestTimeout
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     logging.OrNop(log).Named("server"),
		started: time.Now(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(correlationID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	// Batches run up to maxBatch papers, each under its own analysis
	// timeout, so they sit outside the per-request deadline.
	timeout := middleware.Timeout(s.cfg.Server.RequestTimeout)

	r.Group(func(r chi.Router) {
		r.Use(timeout)
		r.Get("/health", s.handleHealth)
		r.Get("/ping", s.handlePing)
	})

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/analyze/batch", s.handleBatch)

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/", s.handleIndex)
			r.Get("/analyze/{id}", s.handleAnalyze)
			r.Get("/retrieve/{id}", s.handleRetrieve)
			r.Get("/fields", s.handleFields)

			r.Get("/health", s.handleHealth)
			r.Get("/health/llm", s.handleLLMHealth)
			r.Get("/health/gemini", s.handleLLMHealth)
			r.Get("/health/ncbi", s.handleNCBIHealth)
			r.Handle("/metrics", s.metricsHandler())
			r.Get("/status", s.handleStatus)
			r.Get("/config", s.handleConfig)
			r.Get("/version", s.handleVersion)
			r.Get("/ping", s.handlePing)

			r.Route("/cache", func(r chi.Router) {
				r.Get("/stats", s.handleCacheStats)
				r.Get("/search", s.handleCacheSearch)
				r.Post("/sweep", s.handleCacheSweep)
				r.Delete("/", s.handleCacheClear)
				r.Delete("/{kind}/{id}", s.handleCacheDelete)
			})
		})
	})
	return r
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = types.DefaultConfig().Server.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrapf(err, "serving on %s", addr)
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = types.DefaultConfig().Server.ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down server")
	}
	return nil
}

// correlationID assigns a UUID request ID when the client sent none, so
// the ID logged here matches the one a caller can quote.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequestsTotal.Add(1)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, dest any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return eris.New("request body is empty")
		}
		return eris.Wrap(err, "invalid request body")
	}
	if dec.More() {
		return eris.New("request body must contain a single JSON object")
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
