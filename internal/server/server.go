// Package server provides the HTTP API for job intelligence runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jonathan/job-intel/internal/logging"
	"github.com/jonathan/job-intel/internal/pipeline"
	"github.com/jonathan/job-intel/internal/resumes"
	"github.com/jonathan/job-intel/internal/server/middleware"
	"github.com/jonathan/job-intel/internal/server/ratelimit"
)

// DefaultHeartbeat is the interval between heartbeat frames.
const DefaultHeartbeat = 20 * time.Second

const maxRequestBody = 64 << 10

// Pipeline runs job intelligence requests.
type Pipeline interface {
	Validate(req pipeline.Request) (*resumes.Resume, error)
	Run(ctx context.Context, req pipeline.Request, emitter pipeline.Emitter) error
}

// Config holds server configuration.
type Config struct {
	Port           int
	APIKey         string
	Heartbeat      time.Duration
	AllowedOrigins []string
	RateLimit      *ratelimit.Config
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Pipeline     Pipeline
	Fetcher      pipeline.DocumentFetcher
	Resumes      resumes.Store
	FetchTimeout time.Duration
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	router      chi.Router
	deps        Deps
	heartbeat   time.Duration
	rateLimiter *ratelimit.Limiter
}

// New creates a server and mounts its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = pipeline.DefaultFetchTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	rlCfg := cfg.RateLimit
	if rlCfg == nil {
		rlCfg = ratelimit.LoadConfig()
	}

	s := &Server{
		deps:        deps,
		heartbeat:   cfg.Heartbeat,
		rateLimiter: ratelimit.NewLimiter(rlCfg),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders: []string{"Retry-After", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(ratelimit.Middleware(s.rateLimiter))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SharedSecret(cfg.APIKey))
		r.Get("/resumes", s.handleListResumes)
		r.Route("/job-intel", func(r chi.Router) {
			r.Post("/", s.handleJobIntel)
			r.Options("/", s.handleJobIntelOptions)
			r.Get("/details", s.handleJobDetails)
		})
	})
	s.router = r

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run listens until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	log := logging.Get()
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// Close releases background resources without serving.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// requestLogger attaches a request-scoped logger and logs each request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.Get().With().
			Str("request_id", chimw.GetReqID(r.Context())).
			Logger()
		r = r.WithContext(logging.WithLogger(r.Context(), &log))

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request done")
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Get().Error().Err(err).Msg("encode JSON response")
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}
