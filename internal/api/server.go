// Package api provides the HTTP API server for the match engine.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gigmesh/match-engine/internal/api/handlers"
	"github.com/gigmesh/match-engine/internal/api/health"
	"github.com/gigmesh/match-engine/internal/api/middleware"
	"github.com/gigmesh/match-engine/internal/auth"
	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/notify"
	"github.com/gigmesh/match-engine/internal/store"
	"github.com/gigmesh/match-engine/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Deps bundles the engine components the server exposes.
type Deps struct {
	Store       store.Store
	DB          *sql.DB
	Auth        *auth.Service
	Preferences *engine.Preferences
	Scheduler   *engine.Scheduler
	Responder   *engine.Responder
	Ledger      *engine.Ledger
	Hub         *notify.Hub
}

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	deps          *Deps
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, deps *Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:   deps,
		config: cfg,
		logger: logger,
	}

	var pinger health.Pinger
	if deps.DB != nil {
		pinger = deps.DB
	}
	s.healthChecker = health.NewChecker(pinger, Version)
	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.deps.Auth, s.logger)
		r.Use(authMiddleware.Authenticate)

		// Sourcing service submits scored candidates here.
		invitationsHandler := handlers.NewInvitationsHandler(s.deps.Store, s.deps.Scheduler, s.logger)
		r.Post("/invitations", invitationsHandler.Create)

		// Freelancer dashboard routes
		r.Route("/freelancers/{freelancerID}", func(r chi.Router) {
			overviewHandler := handlers.NewOverviewHandler(s.deps.Store, s.deps.Preferences, s.deps.Ledger, s.logger)
			r.Get("/overview", overviewHandler.Get)

			matchesHandler := handlers.NewMatchesHandler(s.deps.Store, s.logger)
			r.Get("/matches", matchesHandler.List)

			respondHandler := handlers.NewRespondHandler(s.deps.Responder, s.logger)
			r.Post("/matches/{invitationID}/respond", respondHandler.Respond)

			preferencesHandler := handlers.NewPreferencesHandler(s.deps.Preferences, s.logger)
			r.Get("/preferences", preferencesHandler.Get)
			r.Patch("/preferences", preferencesHandler.Update)

			streamHandler := handlers.NewStreamHandler(s.deps.Hub, s.logger)
			r.Get("/notifications/stream", streamHandler.Stream)
		})
	})

	s.router = r
}

// Start starts the HTTP server. It blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
