package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/movie-comments/internal/api/http/handlers"
	"github.com/spec-kit/movie-comments/internal/auth"
	"github.com/spec-kit/movie-comments/internal/config"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Comments       *handlers.CommentsHandler
	AuthMiddleware *auth.Middleware
	HTTP           config.HTTPConfig
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth", authRateLimiter(cfg.HTTP))
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	comments := api.Group("/movies/:movieId/comments")
	comments.Get("", cfg.Comments.List)
	comments.Post("", cfg.AuthMiddleware.Handle, cfg.Comments.Create)
	comments.Put("/:commentId", cfg.AuthMiddleware.Handle, cfg.Comments.Update)
	comments.Delete("/:commentId", cfg.AuthMiddleware.Handle, cfg.Comments.Delete)
}
