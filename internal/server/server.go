// Package server wires the store, services and handlers together and owns
// the HTTP server lifecycle.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
//   - which URL patterns map to which handler
//   - which middleware wraps every request
//   - how the server starts and drains on shutdown
//
// main.go only loads config, builds a logger and calls New then Start.
// Tests build the same Server and drive Handler() through httptest.
//
// DEPENDENCY INJECTION FLOW:
//
//	config → Store (sqlite | postgres) ─┐
//	config → TokenService ──────────────┴→ CommentService → CommentHandler → routes
//
// Every dependency is created in New/setupRoutes and handed down. No package
// below this one reaches for globals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/station-comments/internal/auth"
	"github.com/sakif/station-comments/internal/config"
	"github.com/sakif/station-comments/internal/handler"
	"github.com/sakif/station-comments/internal/middleware"
	"github.com/sakif/station-comments/internal/repository"
	postgresRepo "github.com/sakif/station-comments/internal/repository/postgres"
	sqliteRepo "github.com/sakif/station-comments/internal/repository/sqlite"
	"github.com/sakif/station-comments/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after shutdown; callers that
// never call Start (tests) call Close instead.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store // sqlite.DB or postgres.DB, closed on shutdown
}

// New opens the configured store and builds the router.
//
// WIRING:
//  1. Open the store named by database.driver (openStore)
//  2. Build the token verifier from the auth settings
//  3. Build CommentService with the store and verifier
//  4. Build CommentHandler with the service and mount the routes
//
// The service sees only the repository.CommentRepository interface and the
// handler sees only the service. If route setup fails the store is closed
// before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore picks the repository implementation for the configured driver.
// Both run their schema migration before returning.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqliteRepo.New(cfg.Path)
	case config.DriverPostgres:
		return postgresRepo.New(ctx, cfg.URL, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// setupRoutes configures middleware and routes.
//
//	POST   /api/comments                       → create
//	GET    /api/comments/user                  → caller's comments (bearer token)
//	PUT    /api/comments/{id}                  → edit
//	DELETE /api/comments/{id}                  → delete
//	GET    /api/stations/{stationID}/comments  → station's comments
//
// MIDDLEWARE ORDER MATTERS:
// Middleware runs in the order added:
//  1. RequestID  ← tags the request so log lines can be correlated
//  2. RealIP     ← trusts X-Forwarded-For / X-Real-IP from the proxy
//  3. Recoverer  ← turns a handler panic into a 500 instead of a dropped connection
//  4. Logger     ← one line per request, after RequestID so the id is set
//  5. CORS       ← last, so preflight requests are still logged
//
// rs/cors answers preflight (OPTIONS) requests itself. It only matches
// Access-Control-Request-Headers in the form browsers send it: lowercase,
// sorted and comma-separated.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler)

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	commentService := service.NewCommentService(s.store, tokens, s.logger,
		service.WithOwnershipCheck(s.config.Auth.EnforceOwnership))
	commentHandler := handler.NewCommentHandler(commentService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/comments", commentHandler.HandleCreate)
		r.Get("/comments/user", commentHandler.HandleListByUser)
		r.Put("/comments/{id}", commentHandler.HandleEdit)
		r.Delete("/comments/{id}", commentHandler.HandleDelete)
		r.Get("/stations/{stationID}/comments", commentHandler.HandleListByStation)
	})

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
//
// GRACEFUL SHUTDOWN:
// ListenAndServe blocks, so it runs in a goroutine and reports through
// serverErrors. The select waits for whichever comes first:
//   - the listener fails (port in use)
//   - a signal arrives, and srv.Shutdown stops accepting new connections
//     while letting in-flight requests finish
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("enforce_ownership", s.config.Auth.EnforceOwnership),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
