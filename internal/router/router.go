package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterPublic registers routes that need no token: probes, metrics and
// the cached event summary.
func RegisterPublic(e *echo.Echo, db handler.Pinger, ev *handler.EventHandler, cache echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/v1/events/:id/summary", ev.Summary, cache)
}

// RegisterCustomer registers purchase endpoints for any signed-in user.
// Purchase creation goes through the rate limiter.
func RegisterCustomer(e *echo.Echo, p *handler.PurchaseHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/purchases", p.Create, limiter)
	g.GET("/my-purchases", p.ListMine)
}

// RegisterAdmin registers the ADMIN-only endpoints.
func RegisterAdmin(e *echo.Echo, p *handler.PurchaseHandler, ev *handler.EventHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/purchases", p.ListAll)
	g.PATCH("/purchases/:id/status", p.UpdateStatus)
	g.DELETE("/users/:id/purchases/cancelled", p.PurgeCancelled)

	g.POST("/events", ev.Create)
	g.PATCH("/events/:id/capacity", ev.Resize)
	g.DELETE("/events/:id", ev.Delete)
}
