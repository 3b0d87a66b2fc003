package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/Armin-FalDiS/availability-bot/internal/api/http/handlers"
	"github.com/Armin-FalDiS/availability-bot/internal/auth"
	"github.com/Armin-FalDiS/availability-bot/internal/observability"
	"github.com/Armin-FalDiS/availability-bot/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Availability   *handlers.AvailabilityHandler
	AuthMiddleware *auth.Middleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/user", cfg.Users.Me)
	api.Get("/availability", cfg.Availability.List)
	api.Post("/availability", cfg.Availability.Save)
	api.Post("/availability/batch", cfg.Availability.SaveBatch)

	// Unknown routes answer with the same bare 404 the allow-list uses
	// for denied identities, so the two cases stay indistinguishable.
	app.Use(func(c *fiber.Ctx) error {
		return util.NewSilentNotFound()
	})
}
