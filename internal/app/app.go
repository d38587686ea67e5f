package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"user-service/internal/auth"
	"user-service/internal/config"
	"user-service/internal/database"
	"user-service/internal/event"
	"user-service/internal/handler"
	"user-service/internal/metrics"
	"user-service/internal/middleware"
	"user-service/internal/repository"
	"user-service/internal/router"
	"user-service/internal/service"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var cleanups []func()
	fail := func(err error) (*App, error) {
		runCleanups(cleanups)
		return nil, err
	}

	var store service.UserStore
	if cfg.UsesDatabase() {
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, database.PoolOptions{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to connect to database: %w", err))
		}
		cleanups = append(cleanups, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("failed to ensure database schema: %w", err))
		}
		store = repository.NewUserRepository(db.Pool)
		slog.Info("database ready")
	} else {
		slog.Warn("DATABASE_URL not set, users are kept in memory")
		store = repository.NewMemoryUserRepository()
	}

	bus := event.NewBus()
	workerCtx, workerCancel := context.WithCancel(context.Background())
	cleanups = append(cleanups, workerCancel)

	auditEvents, unsubscribeAudit := bus.Subscribe()
	cleanups = append(cleanups, unsubscribeAudit)
	go event.RunAuditLog(workerCtx, auditEvents, slog.Default().With("component", "audit"))

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		appMetrics = metrics.New()
		appMetrics.TrackDroppedEvents(bus.Dropped)
		metricEvents, unsubscribeMetrics := bus.Subscribe()
		cleanups = append(cleanups, unsubscribeMetrics)
		go appMetrics.CountEvents(workerCtx, metricEvents)
	}

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token issuer: %w", err))
	}

	userService := service.NewUserService(store, hasher).WithEvents(bus)
	authService, err := service.NewAuthService(userService, hasher, issuer)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize auth service: %w", err))
	}
	authService.WithEvents(bus)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		User:    handler.NewUserHandler(userService),
		Auth:    handler.NewAuthHandler(authService),
		Docs:    handler.NewDocsHandler(),
		Metrics: appMetrics,
	}, userService.Ping)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cleanupFuncs: cleanups,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

// Close releases the store and background workers in reverse order.
func (a *App) Close() {
	runCleanups(a.cleanupFuncs)
	a.cleanupFuncs = nil
}

func runCleanups(funcs []func()) {
	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}
