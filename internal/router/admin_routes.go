package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/section-queue/internal/middleware"
	"github.com/iliyamo/section-queue/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints: section management and
// staff account creation.
func RegisterAdmin(e *echo.Echo, h Handlers, opt Options) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
		middleware.NewTokenBucket(opt.RateLimit, opt.Redis, opt.Logger),
	)

	// ---- Sections ----
	g.POST("/sections", h.Sections.Create)
	g.PUT("/sections/:id", h.Sections.Rename)
	g.DELETE("/sections/:id", h.Sections.Delete)

	// ---- Staff ----
	g.POST("/auth/register", h.Auth.Register)
}
