package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Organizations  *handlers.OrganizationsHandler
	Tickets        *handlers.TicketsHandler
	Approvals      *handlers.ApprovalsHandler
	Billing        *handlers.BillingHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginLimiter   *auth.LoginLimiter
	// Metrics is served on /metrics when set.
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter.Handle, cfg.Auth.Login)
		authGroup.Post("/forgot-password", cfg.LoginLimiter.Handle, cfg.Auth.ForgotPassword)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
		authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	}
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
	authGroup.Put("/me", cfg.AuthMiddleware.Handle, cfg.Auth.UpdateMe)
	authGroup.Post("/change-password", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	protected := api.Group("", cfg.AuthMiddleware.Handle)

	users := protected.Group("/users")
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
	users.Get("/:id/tickets", cfg.Tickets.UserTickets)

	orgs := protected.Group("/organizations")
	orgs.Get("/", cfg.Organizations.List)
	orgs.Post("/", cfg.Organizations.Create)
	orgs.Get("/:id", cfg.Organizations.Get)
	orgs.Put("/:id", cfg.Organizations.Update)
	orgs.Delete("/:id", cfg.Organizations.Delete)
	orgs.Get("/:id/tickets", cfg.Tickets.OrganizationTickets)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/time-entries", cfg.Tickets.AddTimeEntry)
	tickets.Post("/:id/convert", cfg.Tickets.RequestConversion)

	approvals := protected.Group("/approvals")
	approvals.Get("/", cfg.Approvals.List)
	approvals.Get("/:id", cfg.Approvals.Get)
	approvals.Put("/:id", cfg.Approvals.Decide)

	invoices := protected.Group("/invoices")
	invoices.Get("/", cfg.Billing.ListInvoices)
	invoices.Post("/", cfg.Billing.CreateInvoice)
	invoices.Get("/:id", cfg.Billing.GetInvoice)
	invoices.Put("/:id", cfg.Billing.UpdateInvoiceStatus)

	dashboard := protected.Group("/dashboard")
	dashboard.Get("/stats", cfg.Billing.Stats)
	dashboard.Get("/activities", cfg.Billing.Activities)
}
