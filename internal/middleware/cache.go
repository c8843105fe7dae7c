package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
)

// Each cached response is a Redis hash with these fields.
const (
	fieldStatus = "status"
	fieldHeader = "header"
	fieldBody   = "body"
)

// teeWriter passes the response through while keeping a copy of the body
// until it grows past limit.
type teeWriter struct {
	http.ResponseWriter
	status  int
	body    bytes.Buffer
	written int64
	limit   int64
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.written += int64(len(b))
	if !w.tooBig() {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) tooBig() bool { return w.limit > 0 && w.written > w.limit }

// cacheKey hashes the parts of the request named by the key strategy:
// "route", "route_query" (default) or "method_route_query".
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	h := sha1.New()
	strategy := strings.ToLower(cfg.KeyStrategy)
	if strings.HasPrefix(strategy, "method_") {
		h.Write([]byte(r.Method + " "))
	}
	h.Write([]byte(r.URL.Path))
	if strings.HasSuffix(strategy, "query") || strategy == "" {
		h.Write([]byte("?" + r.URL.RawQuery))
	}
	return cfg.Prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// replay writes a stored response.  It reports false when the hash is
// missing or unreadable so the caller falls through to the handler.
func replay(c echo.Context, stored map[string]string) bool {
	status, err := strconv.Atoi(stored[fieldStatus])
	if err != nil || status == 0 {
		return false
	}
	var header http.Header
	if err := json.Unmarshal([]byte(stored[fieldHeader]), &header); err != nil {
		return false
	}
	out := c.Response().Header()
	for k, vals := range header {
		if http.CanonicalHeaderKey(k) == echo.HeaderContentLength {
			continue
		}
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	out.Set("X-Cache", "HIT")
	c.Response().WriteHeader(status)
	_, _ = c.Response().Write([]byte(stored[fieldBody]))
	return true
}

// NewRedisCache serves repeated reads from Redis.  Only 200 responses that
// fit in MaxBodyBytes are stored, with their headers.  Responses carry
// X-Cache: HIT or MISS.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			stored, err := rdb.HGetAll(ctx, key).Result()
			if err != nil {
				logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
			} else if len(stored) > 0 && replay(c, stored) {
				return nil
			}

			w := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = w
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if w.status != http.StatusOK || w.tooBig() {
				return nil
			}

			header := c.Response().Header().Clone()
			header.Del("X-Cache")
			hdr, err := json.Marshal(header)
			if err != nil {
				return nil
			}
			// The request context may already be cancelled once the body is out.
			wctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err = rdb.TxPipelined(wctx, func(p redis.Pipeliner) error {
				p.HSet(wctx, key, fieldStatus, w.status, fieldHeader, string(hdr), fieldBody, w.body.String())
				p.Expire(wctx, key, ttl)
				return nil
			})
			if err != nil {
				logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// PurgeCacheOnWrite drops every cached response under the cache prefix
// after a successful (2xx) request.
func PurgeCacheOnWrite(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if status := c.Response().Status; err != nil || status < 200 || status >= 300 {
				return err
			}
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, perr := purgePrefix(pctx, rdb, cfg.Prefix)
			switch {
			case perr != nil:
				logger.Warn("cache purge failed", zap.String("prefix", cfg.Prefix), zap.Error(perr))
			case n > 0:
				logger.Debug("cache purged", zap.String("prefix", cfg.Prefix), zap.Int("keys", n))
			}
			return err
		}
	}
}

func purgePrefix(ctx context.Context, rdb *redis.Client, prefix string) (int, error) {
	var keys []string
	it := rdb.Scan(ctx, 0, prefix+":*", 200).Iterator()
	for it.Next(ctx) {
		keys = append(keys, it.Val())
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := rdb.Unlink(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(keys), nil
}
