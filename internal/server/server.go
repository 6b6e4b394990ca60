// Package server provides the HTTP server and routing for the portfolio
// tracker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/PatrikGFX/portfolio-tracker/internal/database"
	"github.com/PatrikGFX/portfolio-tracker/internal/ledger"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Ledger  *ledger.Service
	DB      *database.DB
	Port    int
	DevMode bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	ledger    *ledger.Service
	db        *database.DB
	hub       *streamHub
	startTime time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		ledger:    cfg.Ledger,
		db:        cfg.DB,
		hub:       newStreamHub(cfg.Log),
		startTime: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Live update stream - websocket upgrade must bypass the
		// timeout middleware's write deadline semantics, registered
		// first.
		r.Get("/stream", s.handleStream)

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", s.handleListPositions)
			r.Post("/", s.handleAddPosition)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPosition)
				r.Patch("/", s.handleUpdatePosition)
				r.Delete("/", s.handleDeletePosition)
				r.Post("/transactions", s.handleAddTransaction)
				r.Get("/indicators", s.handleIndicators)
			})
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Get("/sectors", s.handleSectors)
			r.Get("/history", s.handleHistory)
			r.Get("/benchmark", s.handleBenchmark)
			r.Get("/performance", s.handlePerformance)
			r.Get("/top", s.handleTopPositions)
		})

		r.Post("/refresh", s.handleRefresh)
		r.Post("/reset", s.handleReset)

		r.Get("/system/status", s.handleSystemStatus)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes stream subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
