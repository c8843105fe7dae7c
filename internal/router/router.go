package router // package router wires handlers and middleware into an echo instance

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
	"github.com/iliyamo/section-queue/internal/handler"
	"github.com/iliyamo/section-queue/internal/middleware"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Queue       *handler.QueueHandler
	CheckStatus *handler.CheckStatusHandler
	Sections    *handler.SectionHandler
	Customers   *handler.CustomerHandler
	WS          *handler.WSHandler
}

// Options carries the middleware configuration.  Redis may be nil, in
// which case rate limiting and caching pass requests through.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Logger    *zap.Logger
}

// New builds the echo instance with the global middleware chain and every
// route group registered.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(opt.Logger))
	e.Use(echomw.Recover())

	RegisterRoutes(e, h, opt)
	RegisterAuth(e, h.Auth, opt)
	RegisterStaff(e, h, opt)
	RegisterAdmin(e, h, opt)
	return e
}

// RegisterRoutes registers the endpoints that need no session: the health
// probe and the read-only views used by public boards.
func RegisterRoutes(e *echo.Echo, h Handlers, opt Options) {
	e.GET("/healthz", h.Health.Health)

	reads := middleware.NewTokenBucket(opt.RateLimit.ForReads(), opt.Redis, opt.Logger)
	g := e.Group("/v1", reads)
	g.GET("/sections", h.Sections.List)
	g.GET("/queue/:section", h.Queue.List)
	g.GET("/queues", h.Queue.ListAll)
	g.GET("/check-status", h.CheckStatus.List)
	g.GET("/ws", h.WS.Stream)
}

// RegisterAuth registers the session endpoints.  Login, refresh and logout
// are public; /v1/me needs an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, opt Options) {
	limit := middleware.NewTokenBucket(opt.RateLimit, opt.Redis, opt.Logger)
	g := e.Group("/v1/auth", limit)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(opt.JWTSecret), middleware.RequireStaff())
}
