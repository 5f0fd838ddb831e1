package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quickqueue/helpdesk/internal/api/http/handlers"
	"github.com/quickqueue/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Get("/me", cfg.Auth.Me)
	authProtected.Post("/password/change", cfg.Auth.ChangePassword)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("", cfg.Users.ListUsers)
	users.Post("", cfg.Users.CreateUser)
	users.Patch("/:id", cfg.Users.UpdateUser)
	users.Post("/:id/deactivate", cfg.Users.DeactivateUser)
	users.Delete("/:id", cfg.Users.DeleteUser)

	app.Get("/summary", cfg.AuthMiddleware.Handle, cfg.Reports.Summary)
	analytics := app.Group("/analytics", cfg.AuthMiddleware.Handle)
	analytics.Get("/monthly", cfg.Reports.Monthly)
	analytics.Get("/yearly", cfg.Reports.Yearly)
	analytics.Get("/repeat", cfg.Reports.Repeat)

	app.Get("/api/stats", cfg.AuthMiddleware.Handle, cfg.Reports.Stats)
}
