package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/utils"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func do(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": c.Get(CtxUserID), "role": c.Get(CtxRole)})
	}, JWTAuth("s3cret"))

	rec := do(e, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad, err := utils.NewAccessToken("other", 7, model.RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + bad.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	good, err := utils.NewAccessToken("s3cret", 7, model.RoleAdmin, time.Minute)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + good.Token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"ADMIN"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	setRole := func(role string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set(CtxRole, role)
				return next(c)
			}
		}
	}
	e.GET("/admin", handler, setRole(model.RoleReceptionist), RequireRole(model.RoleAdmin))
	e.GET("/staff", handler, setRole(model.RoleReceptionist), RequireStaff())

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/staff", nil).Code)
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID(), RequestLogger(zap.NewNop()))
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, c.Get(CtxRequestID).(string)) })

	rec := do(e, http.MethodGet, "/", nil)
	rid := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, rid, 36)
	assert.Equal(t, rid, rec.Body.String())

	rec = do(e, http.MethodGet, "/", map[string]string{echo.HeaderXRequestID: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLogger_WritesErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zap.NewNop()))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "nope") })

	rec := do(e, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestTokenBucket_LimitsAfterCapacity(t *testing.T) {
	_, rdb := setupRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb, zap.NewNop()))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", nil).Code)
	rec := do(e, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/queue", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/queue")
	c.Set(CtxUserID, uint64(9))

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	assert.Equal(t, "rl:ip:10.0.0.1", rateKey(cfg, c))
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:9:route:POST /v1/queue", rateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.1:user:9:route:POST /v1/queue", rateKey(cfg, c))
	cfg.KeyStrategy = "bogus"
	assert.Equal(t, "rl:ip:10.0.0.1:user:9:route:POST /v1/queue", rateKey(cfg, c))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zap.NewNop()))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", nil).Code)
	}
}

func TestRedisCache_HitMissAndPurge(t *testing.T) {
	_, rdb := setupRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1024,
	}
	calls := 0
	e := echo.New()
	e.GET("/customers/:m", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"membership": c.Param("m"), "calls": calls})
	}, NewRedisCache(cfg, rdb, zap.NewNop()))
	e.PUT("/customers/:m", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		PurgeCacheOnWrite(cfg, rdb, zap.NewNop()))

	first := do(e, http.MethodGet, "/customers/A1", nil)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, http.MethodGet, "/customers/A1", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// Different path parameter is a different entry.
	other := do(e, http.MethodGet, "/customers/B2", nil)
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))

	do(e, http.MethodPut, "/customers/A1", nil)
	third := do(e, http.MethodGet, "/customers/A1", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsOversizedAndErrors(t *testing.T) {
	mr, rdb := setupRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true},
		TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 8,
	}
	e := echo.New()
	e.GET("/big", func(c echo.Context) error { return c.String(http.StatusOK, "this body is too long") },
		NewRedisCache(cfg, rdb, zap.NewNop()))
	e.GET("/missing", func(c echo.Context) error { return c.String(http.StatusNotFound, "no") },
		NewRedisCache(cfg, rdb, zap.NewNop()))

	rec := do(e, http.MethodGet, "/big", nil)
	assert.Equal(t, "this body is too long", rec.Body.String())
	do(e, http.MethodGet, "/missing", nil)
	assert.Empty(t, mr.Keys())
}
