package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CtxRequestID holds the request's trace id.
const CtxRequestID = "request_id"

// requestIDMaxLen caps ids supplied by clients so they cannot flood logs.
const requestIDMaxLen = 64

// RequestID reuses the X-Request-ID header or generates a UUID, stores it
// in the context and echoes it on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" || len(rid) > requestIDMaxLen {
				rid = uuid.NewString()
			}
			c.Set(CtxRequestID, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			return next(c)
		}
	}
}
