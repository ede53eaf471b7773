package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/supportdesk/internal/api/http/handlers"
	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Lifecycle      *handlers.LifecycleHandler
	Settings       *handlers.SettingsHandler
	AI             *handlers.AIHandler
	Team           *handlers.TeamHandler
	GDPR           *handlers.GDPRHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/nonce", cfg.AuthMiddleware.Handle, cfg.Auth.Nonce)

	// Mutating methods on these groups also need a nonce.
	session := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.AuthMiddleware.VerifyNonce}
	admin := append(session[:len(session):len(session)], auth.RequireAdmin())

	tickets := app.Group("/tickets", session...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Lifecycle.UpdateTicket)
	tickets.Patch("/:id/assign", cfg.Lifecycle.AssignTicket)
	tickets.Post("/:id/replies", cfg.Tickets.CreateReply)
	tickets.Get("/:id/replies", cfg.Tickets.ListReplies)

	ai := app.Group("/ai", session...)
	ai.Post("/generate-reply", cfg.AI.GenerateReply)

	gdpr := app.Group("/gdpr", session...)
	gdpr.Get("/my-data", cfg.GDPR.ExportMyData)
	gdpr.Delete("/my-data", cfg.GDPR.EraseMyData)
	gdpr.Get("/data-retention", auth.RequireAdmin(), cfg.GDPR.GetRetention)
	gdpr.Post("/data-retention", auth.RequireAdmin(), cfg.GDPR.UpdateRetention)
	gdpr.Post("/cleanup", auth.RequireAdmin(), cfg.GDPR.Cleanup)

	settings := app.Group("/settings", admin...)
	settings.Get("/", cfg.Settings.GetSettings)
	settings.Post("/", cfg.Settings.ReplaceSettings)

	team := app.Group("/team-members", admin...)
	team.Get("/", cfg.Team.ListMembers)
	team.Post("/", cfg.Team.AddMember)
	team.Get("/stats", cfg.Team.Stats)
	team.Post("/:id/assign-role", cfg.Team.AssignRole)
}
