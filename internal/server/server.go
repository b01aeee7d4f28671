// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New builds every dependency once and wires
// it into the routes, and nothing below this package knows how its
// collaborators were constructed.
//
// DEPENDENCY CHAIN:
//
//	config.Config
//	  → repository.Store (sqlite or postgres)
//	  → auth.PasswordService, auth.TokenService, auth.SessionVerifier
//	  → service.AccountService ─┐
//	  → chat.Hub ───────────────┼→ handler.* → chi routes
//	  → metrics.Metrics ────────┘
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/courier/internal/auth"
	"github.com/sakif/courier/internal/chat"
	"github.com/sakif/courier/internal/config"
	"github.com/sakif/courier/internal/handler"
	"github.com/sakif/courier/internal/metrics"
	"github.com/sakif/courier/internal/middleware"
	"github.com/sakif/courier/internal/repository"
	"github.com/sakif/courier/internal/repository/postgres"
	sqliteRepo "github.com/sakif/courier/internal/repository/sqlite"
	"github.com/sakif/courier/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and every long-lived resource: the store, the hub
// and the reconciler goroutine. Start releases them on the way out.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	store    repository.Store
	hub      *chat.Hub
	accounts *service.AccountService
	metrics  *metrics.Metrics
}

// New opens the store and wires all handlers. The caller must eventually call
// Start, or Close if the server is never started.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	passwords, err := auth.NewPasswordService(auth.Algorithm(cfg.PasswordAlgorithm))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("server: password service: %w", err)
	}

	s, err := newWithStore(cfg, store, passwords, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

// newWithStore wires a server around an already opened store.
func newWithStore(
	cfg config.Config,
	store repository.Store,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("server: token service: %w", err)
	}

	m := metrics.New()
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		hub:      chat.NewHub(m, logger.With(slog.String("component", "hub"))),
		accounts: service.NewAccountService(store, passwords, tokens, m, logger),
		metrics:  m,
	}

	s.setupRoutes(auth.NewSessionVerifier(tokens, logger))
	return s, nil
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("server: opening postgres: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		db, err := sqliteRepo.New(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("server: opening sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("server: unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST /api/account/create            → register
// POST /api/account/login             → issue cookie + header tokens
// POST /api/account/findUserInfoById  → profile (double-token protected)
// POST /api/account/verifyJwt         → true / false
// POST /api/account/logout            → clear cookie
// GET  /api/ws                        → chat WebSocket
// GET  /healthz                       → liveness
// GET  /metrics                       → Prometheus
//
// MIDDLEWARE ORDER:
// RequestID before Logger so every log line carries the id; Recoverer
// inside Logger so a panic still produces an access log line with 500.
func (s *Server) setupRoutes(verifier *auth.SessionVerifier) {
	if s.config.AllowsAnyOrigin() {
		s.logger.Warn("ALLOWED_ORIGINS contains *: any site may send credentialed requests and open WebSockets")
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	accountHandler := handler.NewAccountHandler(s.accounts, verifier, handler.CookieOptions{
		MaxAge: auth.DefaultTokenTTL,
		Secure: s.config.CookieSecure,
	}, s.logger)

	chatHandler := handler.NewChatHandler(
		s.hub,
		chat.NewOriginPolicy(s.config.AllowedOrigins, s.logger),
		chat.ClientConfig{
			MaxMessageSize:  s.config.MaxMessageSize,
			RateLimitBurst:  s.config.RateLimitBurst,
			RateLimitRefill: s.config.RateLimitRefill,
		},
		s.logger,
	)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/account", func(r chi.Router) {
			r.Post("/create", accountHandler.HandleCreate)
			r.Post("/login", accountHandler.HandleLogin)
			r.Post("/verifyJwt", accountHandler.HandleVerifyJWT)
			r.Post("/logout", accountHandler.HandleLogout)

			r.With(auth.RequireSession(verifier, auth.QueryParam("id"))).
				Post("/findUserInfoById", accountHandler.HandleFindUserInfo)
		})
		r.Get("/ws", chatHandler.HandleWebSocket)
	})

	s.router.Get("/healthz", handler.HandleHealth(s.hub))
	s.router.Handle("/metrics", s.metrics.Handler())
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// runReconciler sweeps orphaned users every interval until ctx ends.
func (s *Server) runReconciler(ctx context.Context) {
	interval := s.config.ReconcileInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resolved, err := s.accounts.ReconcileOrphans(ctx)
			if err != nil {
				s.logger.Error("orphan reconciliation failed", slog.String("error", err.Error()))
			}
			if resolved > 0 {
				s.logger.Info("orphans reconciled", slog.Int("resolved", resolved))
			}
		}
	}
}

// Start serves until SIGINT/SIGTERM or a listener error, then shuts down.
//
// GRACEFUL SHUTDOWN:
//  1. stop accepting connections and drain in-flight requests
//  2. close every WebSocket client and wait for its pumps
//  3. stop the reconciler
//  4. close the store
//
// Hijacked WebSocket connections are not tracked by http.Server, which is
// why the hub has its own Shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	bg.Add(1)
	go func() {
		defer bg.Done()
		s.runReconciler(bgCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	stopBackground()
	bg.Wait()

	if err := s.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}

// Close releases the store. Start calls it; call it directly only for a
// server that was never started.
func (s *Server) Close() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("server: closing store: %w", err)
	}
	return nil
}
