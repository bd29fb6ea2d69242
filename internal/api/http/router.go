package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-core/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-core/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Each resource path is registered exactly
// once; trailing-slash handling is the router's job, not a retry mechanism.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Post("/change-password", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/me", cfg.Users.Me)
	users.Get("/", auth.RequireAdmin(), cfg.Users.List)
	users.Patch("/:id/role", auth.RequireAdmin(), cfg.Users.SetRole)
	users.Patch("/:id/active", auth.RequireAdmin(), cfg.Users.SetActive)
	users.Delete("/:id", auth.RequireAdmin(), cfg.Users.Delete)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/respond", cfg.Tickets.Respond)
	tickets.Post("/:id/solve", cfg.Tickets.Solve)
	tickets.Patch("/:id/visibility", cfg.Tickets.ToggleVisibility)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
}
