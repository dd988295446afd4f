package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-starter/internal/config"
	"go-auth-starter/internal/handler"
	"go-auth-starter/internal/middleware"
	"go-auth-starter/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Health http.HandlerFunc
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers) http.Handler {
	r := chi.NewRouter()

	rateLimit := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	metrics := middleware.NewMetricsMiddleware()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Handler)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimit.Handler)

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", metrics.Expose())

	r.Route("/auth", func(auth chi.Router) {
		auth.Use(middleware.Timeout(cfg.RequestTimeout))

		auth.Post("/register", handlers.Auth.Register)
		auth.Post("/login", handlers.Auth.Login)
		auth.With(authMiddleware.RequireAccess).Post("/logout", handlers.Auth.Logout)
		auth.With(authMiddleware.RequireRefresh).Post("/refresh", handlers.Auth.Refresh)
		auth.With(authMiddleware.RequireAccess).Get("/profile", handlers.Auth.Profile)
	})

	r.Route("/users", func(users chi.Router) {
		users.Use(middleware.Timeout(cfg.RequestTimeout))
		users.Use(authMiddleware.RequireAccess)
		users.Use(authMiddleware.RequireRoles(model.RoleAdmin))

		users.Get("/", handlers.User.List)
		users.Put("/{id}/role", handlers.User.ChangeRole)
		users.Put("/{id}/deactivate", handlers.User.Deactivate)
		users.Put("/{id}/activate", handlers.User.Activate)
	})

	return r
}
