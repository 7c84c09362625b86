package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/domain"
	apperrors "github.com/spec-kit/token-auth-service/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Login          *handlers.LoginHandler
	Persons        *handlers.PersonsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. /health and /login are open; every other
// route runs behind the authentication middleware.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/login", cfg.Login.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/me", cfg.Persons.Me)
	protected.Get("/rest/persons", auth.RequireAuthority(domain.PrivilegeReadData), cfg.Persons.List)

	app.Use(func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("route", map[string]any{"path": c.Path()})
	})
}
