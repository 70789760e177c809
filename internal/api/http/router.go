package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Imports        *handlers.ImportsHandler
	Incidents      *handlers.IncidentsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	imports := protected.Group("/imports")
	imports.Post("/", cfg.Imports.Upload)
	imports.Get("/pending", cfg.Imports.ListPending)
	imports.Post("/:id/ghosts/:numero/resolve", cfg.Imports.ResolveGhost)
	imports.Post("/:id/ghosts/resolve-all", cfg.Imports.ResolveAll)
	imports.Post("/:id/ghosts/dismiss", cfg.Imports.Dismiss)
	imports.Post("/:id/abort", cfg.Imports.Abort)

	incidents := protected.Group("/incidents")
	incidents.Get("/", cfg.Incidents.List)
	incidents.Get("/:numero", cfg.Incidents.Get)
	incidents.Post("/:numero/parts", cfg.Incidents.RequestParts)
	incidents.Post("/:numero/device", cfg.Incidents.RequestDevice)
	incidents.Patch("/:numero/parts-status", cfg.Incidents.UpdatePartsStatus)
	incidents.Post("/:numero/notes", cfg.Incidents.AddNote)

	stats := protected.Group("/stats")
	stats.Get("/regions", cfg.Stats.Regions)
	stats.Get("/sla", cfg.Stats.SLA)
	stats.Get("/suppliers", cfg.Stats.Suppliers)
	stats.Get("/insights", cfg.Stats.Insights)
	stats.Get("/metrics", cfg.Stats.Metrics)
	stats.Put("/regions/:regione/visibility", cfg.Stats.SetRegionVisibility)
}
