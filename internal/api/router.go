package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/focusdial/internal/api/apikeys"
	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/entries"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/api/projects"
	"github.com/good-yellow-bee/focusdial/internal/api/stream"
	"github.com/good-yellow-bee/focusdial/internal/api/users"
	"github.com/good-yellow-bee/focusdial/internal/api/webhook"
	"github.com/good-yellow-bee/focusdial/internal/models"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	store := s.deps.Storage
	broker := s.deps.Broker

	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	// Device webhook, authenticated by API key.
	hook := webhook.NewHandler(s.deps.Tracker, s.webhookLimiter)
	for _, path := range []string{"/api/webhook", "/webhook"} {
		r.Get(path, hook.Ready)
		r.Post(path, hook.Handle)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			authHandler := auth.NewHandler(store, s.jwt, s.lockout, s.config.RefreshTokenTTL)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(s.ipLimiter))
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(s.jwt))
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Everything below needs a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(s.jwt))
			r.Use(middleware.RateLimitByUser(s.userLimiter))

			r.Route("/users", func(r chi.Router) {
				userHandler := users.NewHandler(store)

				r.Get("/me", userHandler.GetCurrentUser)
				r.Put("/me/password", userHandler.ChangePassword)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleAdmin))
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
				})

				r.Route("/{id}", func(r chi.Router) {
					r.Use(middleware.RequireAdminOrSelf)
					r.Get("/", userHandler.GetByID)
					r.Put("/", userHandler.Update)

					r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/", userHandler.Delete)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				h := projects.NewHandler(store, broker)
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{id}", h.GetByID)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})

			r.Route("/entries", func(r chi.Router) {
				h := entries.NewHandler(store, broker, s.deps.Timeline)
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{id}", h.GetByID)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
				r.Post("/{id}/stop", h.Stop)
			})

			r.Route("/api-keys", func(r chi.Router) {
				h := apikeys.NewHandler(store, broker)
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Delete("/{id}", h.Delete)
			})

			r.Get("/dashboard", s.dash.Summary)
			r.Get("/timeline", s.dash.Timeline)
			r.Get("/events", stream.NewHandler(broker).Stream)
		})
	})

	r.Get("/health", s.health.Health)
	r.Get("/health/live", s.health.Live)
	r.Get("/health/ready", s.health.Ready)

	return r
}
