// Package server provides the HTTP trigger and inspection API for the autopilot.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/shorts-autopilot/internal/analytics"
	"github.com/jonathan/shorts-autopilot/internal/config"
	"github.com/jonathan/shorts-autopilot/internal/db"
	"github.com/jonathan/shorts-autopilot/internal/metrics"
	"github.com/jonathan/shorts-autopilot/internal/scheduler"
	"github.com/jonathan/shorts-autopilot/internal/server/middleware"
	"github.com/jonathan/shorts-autopilot/internal/server/ratelimit"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"github.com/jonathan/shorts-autopilot/internal/workflow"
)

// Operation names used for single-flight guards and the busy gauge.
const (
	OperationGenerate = "generate"
	OperationCollect  = "collect"
)

// Store is the record access the API needs.
type Store interface {
	GetNiche(ctx context.Context, id string) (*types.ContentNiche, error)
	ListNiches(ctx context.Context) ([]types.ContentNiche, error)
	GetJob(ctx context.Context, id string) (*types.WorkflowJob, error)
	ListJobs(ctx context.Context, filters types.JobFilters) ([]types.WorkflowJob, error)
	GetVideo(ctx context.Context, id string) (*types.VideoRecord, error)
	ListVideos(ctx context.Context, filters db.VideoFilters) ([]types.VideoRecord, error)
}

// Workflow runs and retries single niches.
type Workflow interface {
	RunWithReport(ctx context.Context, niche *types.ContentNiche) (*workflow.RunReport, error)
	RetryWithReport(ctx context.Context, jobID string) (*workflow.RunReport, error)
}

// Batch runs several niches one after another.
type Batch interface {
	RunAll(ctx context.Context, niches []types.ContentNiche) []scheduler.Outcome
}

// Collector refreshes analytics for every niche.
type Collector interface {
	CollectAll(ctx context.Context) (*analytics.Summary, error)
}

// Deps are the collaborators behind the endpoints.
type Deps struct {
	Store     Store
	Workflow  Workflow
	Batch     Batch
	Collector Collector
	Metrics   *metrics.Recorder
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Config holds server configuration.
type Config struct {
	Port int
	// AssetsDir is served under /assets/ so platforms can pull videos by URL. Empty disables it.
	AssetsDir string
	// Auth protects every endpoint except health, metrics and assets. Nil leaves them open.
	Auth      *config.TriggerAuthConfig
	RateLimit *ratelimit.Config
	Logger    *log.Logger
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	deps        Deps
	rateLimiter *ratelimit.Limiter
	tokens      *TokenService
	logger      *log.Logger

	generating atomic.Bool
	collecting atomic.Bool

	// baseCtx bounds background runs; Shutdown cancels it.
	baseCtx    context.Context
	cancel     context.CancelFunc
	background sync.WaitGroup
}

// New creates a new server instance.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("server: store is required")
	case deps.Workflow == nil:
		return nil, errors.New("server: workflow is required")
	case deps.Batch == nil:
		return nil, errors.New("server: batch runner is required")
	case deps.Collector == nil:
		return nil, errors.New("server: analytics collector is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		deps:        deps,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		logger:      cfg.Logger,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if cfg.Auth != nil {
		s.tokens = NewTokenService(cfg.Auth)
	} else {
		s.logger.Printf("[server] Warning: trigger authentication is disabled")
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	if cfg.AssetsDir != "" {
		mux.Handle("GET /assets/", assetsHandler(cfg.AssetsDir))
	}

	// Triggers
	mux.Handle("POST /generate", s.protect(s.handleGenerate))
	mux.Handle("POST /generate/stream", s.protect(s.handleGenerateStream))
	mux.Handle("POST /analytics/collect", s.protect(s.handleCollect))
	mux.Handle("POST /jobs/{id}/retry", s.protect(s.handleRetry))

	// Inspection
	mux.Handle("GET /jobs", s.protect(s.handleListJobs))
	mux.Handle("GET /jobs/{id}", s.protect(s.handleGetJob))
	mux.Handle("GET /videos/{id}", s.protect(s.handleGetVideo))
	mux.Handle("GET /niches", s.protect(s.handleListNiches))
	mux.Handle("GET /niches/{id}", s.protect(s.handleGetNiche))
	mux.Handle("GET /niches/{id}/videos", s.protect(s.handleListNicheVideos))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // Streamed runs wait on video synthesis
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and blocks until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[server] Listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Println("[server] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests, cancels background runs and waits for them to
// record their outcome.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	s.rateLimiter.Stop()

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Printf("[server] Warning: background runs still active at shutdown")
	}

	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Println("[server] Stopped")
	return nil
}

// protect wraps a handler with Bearer authentication when it is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.tokens == nil {
		return h
	}
	return middleware.AuthMiddleware(s.tokens.AsTokenValidator())(h)
}

// acquire claims the single-flight slot for op.
func (s *Server) acquire(flag *atomic.Bool, op string) error {
	if !flag.CompareAndSwap(false, true) {
		return &ErrBusy{Operation: op}
	}
	s.deps.Metrics.SetBusy(op, true)
	return nil
}

func (s *Server) release(flag *atomic.Bool, op string) {
	flag.Store(false)
	s.deps.Metrics.SetBusy(op, false)
}

// goBackground runs fn on the server's base context and releases the slot when it ends.
func (s *Server) goBackground(flag *atomic.Bool, op string, fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.release(flag, op)
		fn(s.baseCtx)
	}()
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("[http] %s %s %d %v (%s)", r.Method, r.URL.Path, rec.status, time.Since(start), extractClientID(r))
	})
}

// handleHealth is a no-op liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// assetsHandler serves stored videos. Directory listings are not exposed.
func assetsHandler(dir string) http.Handler {
	files := http.StripPrefix("/assets/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("[http] Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFor writes err with the status HTTPStatus assigns it.
func (s *Server) errorFor(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}

// extractClientID uses the remote IP. X-Forwarded-For is ignored since no proxy is trusted.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		retry := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = retry
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
	}

	s.logger.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
