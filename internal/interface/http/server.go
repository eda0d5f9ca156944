// Package http implements the REST API of the ninja dashboard: curriculum
// lookups, live form bounds, ninja records, Lesson Up and progress history.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/ninja-dashboard/internal/application/command"
	"github.com/dojo-hub/ninja-dashboard/internal/application/query"
	"github.com/dojo-hub/ninja-dashboard/internal/interface/http/handlers"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of JSON request bodies.
	MaxBodyBytes int64

	EnableCORS     bool
	AllowedOrigins []string

	// Version is the build reported by the root and health endpoints.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
		MaxBodyBytes:   64 << 10,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		Version:        "v1",
	}
}

// Address is host:port. Port 0 picks a free port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// RequestObserver records served requests by route pattern.
type RequestObserver interface {
	ObserveRequest(route, method string, code int, duration time.Duration)
}

// Dependencies contains all dependencies required by HTTP handlers.
// A nil handler answers 501 on its routes.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	CreateNinja       *command.CreateNinjaHandler
	UpdateProgression *command.UpdateProgressionHandler
	LessonUp          *command.LessonUpHandler
	CorrectProgress   *command.CorrectProgressHandler

	// Query Handlers (CQRS Read Side)
	GetBounds          *query.GetBoundsHandler
	GetCurriculum      *query.GetCurriculumHandler
	GetNinja           *query.GetNinjaHandler
	GetProgressHistory *query.GetProgressHistoryHandler
	PreviewAdvance     *query.PreviewAdvanceHandler

	// Metrics
	RequestObserver RequestObserver
	MetricsHandler  http.Handler

	// Health Check Dependencies
	HealthChecker handlers.HealthChecker

	// AdminAuth guards write routes. Nil or without hashes leaves them open.
	AdminAuth *handlers.APIKeyAuth

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *logger.Logger

	mu        sync.RWMutex
	listener  net.Listener
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if s.config.MaxBodyBytes <= 0 {
		s.config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	if deps.AdminAuth == nil || !deps.AdminAuth.Enabled() {
		s.logger.Warn("admin key hash not configured, write routes are open")
	}

	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the fully wrapped router. Used by tests and embedding servers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	if s.deps.MetricsHandler != nil {
		s.router.Handle("GET /metrics", s.deps.MetricsHandler)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Curriculum & Progression (pure, public)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/curriculum", s.handleGetCurriculum)
	s.router.HandleFunc("GET /api/v1/curriculum/{path}", s.handleGetCurriculum)
	s.router.HandleFunc("GET /api/v1/progression/bounds", s.handleGetBounds)
	s.router.HandleFunc("POST /api/v1/progression/normalize", s.handleNormalize)
	s.router.HandleFunc("POST /api/v1/progression/advance", s.handlePreviewAdvance)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Ninjas
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/ninjas", s.handleListNinjas)
	s.router.HandleFunc("GET /api/v1/ninjas/{id}", s.handleGetNinja)
	s.router.HandleFunc("GET /api/v1/ninjas/{id}/progress", s.handleGetProgressHistory)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Admin (write) Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("POST /api/v1/ninjas", s.admin(s.handleCreateNinja))
	s.router.Handle("PUT /api/v1/ninjas/{id}/progression", s.admin(s.handleUpdateProgression))
	s.router.Handle("POST /api/v1/ninjas/{id}/lesson-up", s.admin(s.handleLessonUp))
	s.router.Handle("PUT /api/v1/ninjas/{id}/progress/{entryID}", s.admin(s.handleCorrectProgress))
}

// admin wraps a write route with the API key check and the body size limit.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	var next http.Handler = handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes)(h)
	if s.deps.AdminAuth != nil && s.deps.AdminAuth.Enabled() {
		next = s.deps.AdminAuth.Middleware(next)
	}
	return next
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router with all middleware.
// Metrics sit innermost so the matched route pattern is visible to them.
func (s *Server) buildMiddlewareChain(router http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{}
	if s.config.EnableCORS {
		chain = append(chain, s.corsMiddleware)
	}
	chain = append(chain,
		s.recoveryMiddleware,
		s.loggingMiddleware,
		s.requestIDMiddleware,
		handlers.SecurityHeadersMiddleware,
		s.metricsMiddleware,
	)
	return handlers.ChainHandler(router, chain...)
}

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			logger.String("ip", getClientIP(r)),
			logger.String("request_id", rw.Header().Get("X-Request-ID")),
		)
	})
}

// metricsMiddleware records the request against its route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	if s.deps.RequestObserver == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrapResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.deps.RequestObserver.ObserveRequest(route, r.Method, rw.statusCode, time.Since(start))
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// ErrServerRunning is returned by Start on a running server.
var ErrServerRunning = errors.New("server already running")

// Start binds the address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := s.bind()
	if err != nil {
		return err
	}
	return s.serve(ln)
}

// StartAsync binds before returning, so Address reports the real port and a
// bind failure arrives on the channel right away. The channel closes when
// the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	ln, err := s.bind()
	if err != nil {
		errCh <- err
		close(errCh)
		return errCh
	}

	go func() {
		defer close(errCh)
		if err := s.serve(ln); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

func (s *Server) bind() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, ErrServerRunning
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.config.Address(), err)
	}
	s.listener = ln
	s.startedAt = time.Now()

	s.logger.Info("HTTP server listening", logger.String("address", ln.Addr().String()))
	return ln, nil
}

func (s *Server) serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	return fmt.Errorf("serve: %w", err)
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Shutting down a stopped server is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	running := s.listener != nil
	s.listener = nil
	s.mu.Unlock()

	if !running {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener != nil
}

// Uptime is zero while stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address is the bound address while running, the configured one otherwise.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

const apiVersion = "v1"

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Offset    int       `json:"offset,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Count     int       `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	respond(w, nil, status, JSONResponse{Data: data})
}

// writeJSONWithMeta also echoes the request ID when r is set.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	respond(w, r, status, JSONResponse{Data: data, Meta: meta})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeAPIError(w, status, &APIError{Code: code, Message: message})
}

func writeAPIError(w http.ResponseWriter, status int, apiErr *APIError) {
	respond(w, nil, status, JSONResponse{Error: apiErr})
}

// respond fills Success and the meta timestamp, then encodes body.
func respond(w http.ResponseWriter, r *http.Request, status int, body JSONResponse) {
	if body.Meta == nil {
		body.Meta = &ResponseMeta{}
	}
	body.Meta.Timestamp = time.Now().UTC()
	body.Meta.Version = apiVersion
	body.Success = status >= 200 && status < 300
	if r != nil {
		body.RequestID = getRequestID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.written = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// getQueryParamInt extracts an integer query parameter with a default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}
