package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/section-queue/internal/middleware"
)

// RegisterStaff registers the desk endpoints under /v1.  All routes need a
// valid JWT with the ADMIN or RECEPTIONIST role.  Customer lookups are
// served from the response cache; every customer write purges it.
func RegisterStaff(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireStaff(),
		middleware.NewTokenBucket(opt.RateLimit, opt.Redis, opt.Logger),
	)

	// ---- Queue ----
	g.POST("/queue", h.Queue.Enqueue)
	g.DELETE("/queue/:id", h.Queue.Dequeue)
	g.POST("/sections/:section/finish", h.Queue.Finish)

	// ---- Check status ----
	g.POST("/check-status", h.CheckStatus.Add)
	g.PUT("/check-status/:id/ready", h.CheckStatus.Ready)
	g.DELETE("/check-status/:id/collected", h.CheckStatus.Collect)

	// ---- Customers ----
	cache := middleware.NewRedisCache(opt.Cache, opt.Redis, opt.Logger)
	purge := middleware.PurgeCacheOnWrite(opt.Cache, opt.Redis, opt.Logger)
	g.GET("/customers", h.Customers.List)
	g.GET("/customers/:membership", h.Customers.Get, cache)
	g.POST("/customers", h.Customers.Create, purge)
	g.POST("/customers/import", h.Customers.Import, purge)
	g.PUT("/customers/:id", h.Customers.Update, purge)
	g.DELETE("/customers/:id", h.Customers.Delete, purge)
}
