package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"user-service/internal/config"
	"user-service/internal/handler"
	"user-service/internal/metrics"
	"user-service/internal/middleware"
	"user-service/internal/model"
)

type Handlers struct {
	User *handler.UserHandler
	Auth *handler.AuthHandler
	Docs *handler.DocsHandler
	// Metrics is optional; when nil no /metrics route is mounted.
	Metrics *metrics.Metrics
}

// HealthFunc reports whether the user store is reachable.
type HealthFunc func(ctx context.Context) error

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.LoginRateLimitRPM)

	r.Use(middleware.Recovery)
	if handlers.Metrics != nil {
		r.Use(handlers.Metrics.Middleware)
	}
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler(health))
	r.Get("/openapi.yaml", handlers.Docs.OpenAPI)
	r.Get("/swagger", handlers.Docs.SwaggerUI)
	if handlers.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", handlers.Metrics.Handler())
	}

	guard := func(next http.Handler) http.Handler { return next }
	if cfg.AuthRequired {
		guard = authMiddleware.RequireAuth
	}

	r.Route("/users", func(users chi.Router) {
		users.Use(middleware.Timeout(cfg.RequestTimeout))

		users.Post("/", handlers.User.Create)
		users.Post("/loginUser", handlers.Auth.Login)
		users.With(authMiddleware.RequireAuth).Get("/me", handlers.Auth.Me)

		users.With(guard).Get("/", handlers.User.List)
		users.With(guard).Get("/{id}", handlers.User.Get)
		users.With(guard).Put("/{id}", handlers.User.Update)
		users.With(guard).Delete("/{id}", handlers.User.Delete)
	})

	return r
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := model.HealthResponse{Status: "ok", Store: "ok"}

		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body = model.HealthResponse{Status: "degraded", Store: "unavailable"}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
