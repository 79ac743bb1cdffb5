package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/next-chapter/resume-engine/internal/config"
	"github.com/next-chapter/resume-engine/internal/metrics"
	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/resume"
	"github.com/next-chapter/resume-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	service        resume.Service
	authMiddleware *AuthMiddleware
	recorder       *metrics.Recorder
	metricsHandler http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithRecorder records HTTP and live-preview metrics
func WithRecorder(rec *metrics.Recorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// WithMetricsHandler exposes h on GET /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	auth config.AuthConfig,
	svc resume.Service,
	repo storage.Repository,
	opts ...Option,
) *Server {
	s := &Server{
		config:         cfg,
		service:        svc,
		authMiddleware: NewAuthMiddleware(repo, auth.Enabled),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.RequestTimeout <= 0 {
		s.config.RequestTimeout = 30 * time.Second
	}
	if len(s.config.AllowedOrigins) == 0 {
		s.config.AllowedOrigins = []string{"*"}
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	requireRead := s.authMiddleware.RequirePermission(models.PermTranslationsRead)
	requireWrite := s.authMiddleware.RequirePermission(models.PermTranslationsWrite)
	requireSports := s.authMiddleware.RequirePermission(models.PermSportsRead)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Long-lived websocket, exempt from the request timeout
		r.With(requireWrite).Get("/translate/live", s.handleLiveTranslate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))

			r.With(requireWrite).Post("/translate", s.handleTranslate)

			r.Route("/translations", func(r chi.Router) {
				r.With(requireRead).Get("/", s.handleListTranslations)
				r.With(requireRead).Get("/{id}", s.handleGetTranslation)
				r.With(requireWrite).Delete("/{id}", s.handleDeleteTranslation)
			})

			r.Route("/sports", func(r chi.Router) {
				r.With(requireSports).Get("/", s.handleListSports)
				r.With(requireSports).Get("/{key}", s.handleGetSport)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			duration := time.Since(start)
			s.recorder.RecordHTTPRequest(r.Method, route, ww.Status(), duration)

			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
