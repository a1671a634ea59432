// Package web provides the HTTP server and handlers for publishing and
// browsing datasets.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/sheetshare/internal/config"
	"github.com/JonMunkholm/sheetshare/internal/core"
	mw "github.com/JonMunkholm/sheetshare/internal/web/middleware"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and other fields.
const multipartOverhead = 1 << 20

// Server is the HTTP server for the application.
type Server struct {
	service *core.Service
	cfg     *config.Config
	keys    []config.APIKey
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server. keys are the parsed API keys from
// cfg.Security.
func NewServer(service *core.Service, cfg *config.Config, keys []config.APIKey) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		keys:    keys,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if origins := s.cfg.Security.CORSAllowedOrigins; len(origins) > 0 {
		s.router.Use(cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodDelete,
				http.MethodOptions,
			},
			AllowedHeaders: []string{"Content-Type", "X-API-Key", "HX-Request", "HX-Target", "HX-Current-URL"},
		}).Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security, s.keys))
		r.Use(mw.Logger)

		// Progress streams outlive the request timeout.
		r.With(mw.RequirePublisher).Get("/api/publish/progress", s.handlePublishProgress)

		r.Group(func(r chi.Router) {
			if t := s.cfg.Server.RequestTimeout; t > 0 {
				r.Use(middleware.Timeout(t))
			}

			// Pages
			r.Get("/", s.handleViewer)
			r.With(mw.RequirePublisher).Get("/admin", s.handlePublisher)
			r.With(mw.RequirePublisher).Get("/admin/panel", s.handlePublisherPanel)

			// Viewer API
			r.Get("/api/datasets", s.handleListDatasets)
			r.Get("/api/datasets/{datasetID}/rows", s.handleDatasetRows)

			// Publisher API
			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePublisher)

				r.Post("/api/uploads", s.handleUpload)
				r.Delete("/api/uploads", s.handleDiscardUpload)
				r.Get("/api/uploads/preview", s.handleUploadPreview)
				r.Put("/api/uploads/name", s.handleSetDatasetName)

				r.Post("/api/publish", s.handleStartPublish)
				r.Get("/api/publish/status", s.handlePublishStatus)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Scripts from self and the htmx CDN; inline handlers for the dataset selector
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:")

		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
