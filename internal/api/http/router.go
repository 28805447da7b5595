package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agrilink/sourcing-service/internal/api/http/handlers"
	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Requests       *handlers.RequestsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role gating here is coarse; ownership and
// transition rules live in the services.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Signup)
	authGroup.Post("/login", cfg.Users.Login)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protectedAuth.Post("/password/change", cfg.Users.ChangePassword)
	protectedAuth.Get("/me", cfg.Users.Me)

	producers := app.Group("/producers", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	producers.Get("/", cfg.Users.ListProducers)

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	requests.Get("/", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Post("/", auth.RequireRole(domain.RoleBuyer), cfg.Requests.Submit)
	requests.Post("/:id/accept", auth.RequireRole(domain.RoleProducer), cfg.Requests.Accept)
	requests.Post("/:id/decline", auth.RequireRole(domain.RoleProducer), cfg.Requests.Decline)
	requests.Post("/:id/complete", auth.RequireRole(domain.RoleProducer), cfg.Requests.Complete)
}
