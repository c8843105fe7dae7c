package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
)

// takeToken refills the bucket stored at KEYS[1] by whole intervals and
// takes one token.  ARGV: now_ms, capacity, refill, interval_ms, ttl_s.
// Reply: {allowed, remaining, wait_ms}.
var takeToken = redis.NewScript(`
local b = redis.call('HMGET', KEYS[1], 'n', 'at')
local now, cap, refill, every = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local n, at = tonumber(b[1]), tonumber(b[2])
if not n then n, at = cap, now end
local steps = math.floor(math.max(0, now - at) / every)
if steps > 0 then
	n = math.min(cap, n + steps * refill)
	at = at + steps * every
end
local ok, wait = 0, 0
if n >= 1 then
	ok, n = 1, n - 1
else
	wait = math.max(0, every - (now - at))
end
redis.call('HSET', KEYS[1], 'n', n, 'at', at)
redis.call('EXPIRE', KEYS[1], ARGV[5])
return {ok, n, wait}
`)

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// bucketVerdict is one takeToken reply.
type bucketVerdict struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

type tokenBucket struct {
	cfg    config.RateLimitConfig
	rdb    *redis.Client
	logger *zap.Logger
}

func (b *tokenBucket) take(ctx context.Context, key string) (bucketVerdict, error) {
	reply, err := takeToken.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketVerdict{}, err
	}
	if len(reply) != 3 {
		return bucketVerdict{}, redis.Nil
	}
	return bucketVerdict{
		allowed:   reply[0] == 1,
		remaining: reply[1],
		wait:      time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests with a token bucket kept in Redis and
// keyed by cfg.KeyStrategy.  It fails open: with no client, or when Redis
// errors, requests pass.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.TTL < time.Second {
		cfg.TTL = max(5*cfg.RefillInterval, time.Minute)
	}
	b := &tokenBucket{cfg: cfg, rdb: rdb, logger: logger}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			v, err := b.take(c.Request().Context(), key)
			if err != nil {
				logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if v.allowed {
				return next(c)
			}

			secs := int((v.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			logger.Debug("rate limited", zap.String("key", key), zap.Duration("wait", v.wait))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// rateKey joins the prefix with the request attributes named by the key
// strategy, e.g. "rl:ip:10.0.0.1:route:POST /v1/queue".
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	attrs := map[string]func() string{
		"ip": func() string {
			if ip := c.RealIP(); ip != "" {
				return ip
			}
			return "unknown"
		},
		"user":  func() string { return currentUserID(c) },
		"route": func() string { return c.Request().Method + " " + c.Path() },
	}
	strategy := strings.ToLower(cfg.KeyStrategy)
	if strategy == "" {
		strategy = "ip_user_route"
	}
	parts := []string{cfg.Prefix}
	for _, name := range strings.Split(strategy, "_") {
		if get, ok := attrs[name]; ok {
			parts = append(parts, name, get())
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "ip", attrs["ip"](), "user", attrs["user"](), "route", attrs["route"]())
	}
	return strings.Join(parts, ":")
}
