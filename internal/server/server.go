package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/metrics"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/server/middleware"
	"github.com/jonathan/model-builder/internal/server/ratelimit"
	"github.com/jonathan/model-builder/internal/types"
)

// ModelService reads and deletes backend model records; backend.Client implements it
type ModelService interface {
	pipeline.ModelGetter
	DeleteModel(ctx context.Context, id int) error
}

// DatasetCatalog lists a project's datasets; dataset.Catalog implements it
type DatasetCatalog interface {
	Datasets(ctx context.Context, projectID int) ([]types.Dataset, error)
	Refresh(ctx context.Context, projectID int) ([]types.Dataset, error)
}

// Deps are the collaborators the server drives. Store and Cache are optional.
type Deps struct {
	Models    ModelService
	Datasets  DatasetCatalog
	Resolver  func(projectID int) pipeline.DatasetResolver
	Extractor pipeline.IntentExtractor
	Executor  pipeline.TrainingExecutor
	Store     SessionStore
	Cache     SnapshotCache
	Logger    *logger.Logger
}

// Config holds server configuration
type Config struct {
	Port           int
	ProjectID      int    // used when a new session names no project
	ModelName      string // used when a new session names no model
	AllowedOrigins []string
	RateLimit      ratelimit.Config
}

// Server represents the HTTP server
type Server struct {
	cfg         Config
	deps        Deps
	log         *logger.Logger
	httpServer  *http.Server
	rateLimiter *ratelimit.Limiter

	sessions  *registry
	restoreMu sync.Mutex
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Models == nil || deps.Datasets == nil || deps.Resolver == nil || deps.Extractor == nil || deps.Executor == nil {
		return nil, fmt.Errorf("models, datasets, resolver, extractor and executor are required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		cfg:         cfg,
		deps:        deps,
		log:         log,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		sessions:    newRegistry(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams and training requests run long
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("POST /sessions/resume", s.handleResumeSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("POST /sessions/{id}/save", s.handleSaveSession)

	// Session commands
	mux.HandleFunc("POST /sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("PATCH /sessions/{id}/intent", s.handleEditIntent)
	mux.HandleFunc("POST /sessions/{id}/intent/models/{name}/toggle", s.handleToggleModel)
	mux.HandleFunc("POST /sessions/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /sessions/{id}/train", s.handleTrain)
	mux.HandleFunc("POST /sessions/{id}/reset", s.handleReset)

	// Backend records
	mux.HandleFunc("GET /projects/{id}/datasets", s.handleListDatasets)
	mux.HandleFunc("DELETE /models/{id}", s.handleDeleteModel)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return middleware.Chain(mux,
		middleware.Recover(s.log),
		middleware.RequestID,
		s.withRateLimit,
		middleware.Logging(s.log),
		middleware.CORS(s.cfg.AllowedOrigins),
	)
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.log.Info("server stopped")
	return nil
}

// Close stops background work without serving
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			metrics.RateLimitedCount.WithLabelValues(info.Rule).Inc()
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sessions":    s.sessions.size(),
		"persistence": s.deps.Store != nil,
		"cache":       s.deps.Cache != nil,
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("error encoding JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failResponse maps err to a status and message
func (s *Server) failResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		s.log.Error("request failed", "error", err)
	}
	s.errorResponse(w, status, errorMessage(err))
}

// extractClientID uses the IP address from RemoteAddr
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.log.Warn("rate limit exceeded",
		"client", s.extractClientID(r),
		"rule", info.Rule,
		"limit", info.Limit)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
