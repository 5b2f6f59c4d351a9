package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldops/taskboard/internal/api/http/handlers"
	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Users    *handlers.UsersHandler
	Tasks    *handlers.TasksHandler
	Activity *handlers.ActivityHandler
	Planner  *handlers.PlannerHandler
	Reports  *handlers.ReportsHandler
	Metrics  *observability.Metrics
	// Authenticate loads the session; AuthMiddleware.Handle in production.
	Authenticate fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.Authenticate, auth.RequireSession())

	authGroup := protected.Group("/auth")
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.Auth.Me)
	authGroup.Post("/password/change", cfg.Auth.ChangePassword)

	users := protected.Group("/users")
	users.Get("/", cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Post("/", auth.RequireRole(domain.RoleAdmin), cfg.Users.Create)
	users.Patch("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Users.Update)

	tasks := protected.Group("/tasks")
	tasks.Get("/", cfg.Tasks.ListTasks)
	tasks.Post("/", cfg.Tasks.CreateTask)
	tasks.Get("/export", cfg.Tasks.Export)
	tasks.Post("/suggest-priority", cfg.Tasks.SuggestPriority)
	tasks.Get("/:id", cfg.Tasks.GetTask)
	tasks.Get("/:id/history", cfg.Tasks.History)
	tasks.Patch("/:id/status", cfg.Tasks.UpdateStatus)
	tasks.Patch("/:id/priority", cfg.Tasks.UpdatePriority)
	tasks.Patch("/:id/assignee", cfg.Tasks.Reassign)

	protected.Get("/activity", cfg.Activity.List)

	planner := protected.Group("/planner/events")
	planner.Get("/", cfg.Planner.List)
	planner.Post("/", cfg.Planner.Create)
	planner.Patch("/:id", cfg.Planner.Update)
	planner.Delete("/:id", cfg.Planner.Delete)

	reports := protected.Group("/reports")
	reports.Get("/performance", cfg.Reports.Performance)
	reports.Get("/performance/export", cfg.Reports.PerformanceExport)
}
