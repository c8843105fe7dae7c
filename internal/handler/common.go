package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/middleware"
	"github.com/iliyamo/section-queue/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case service.IsKind(err, service.ErrNotFound):
		return http.StatusNotFound
	case service.IsKind(err, service.ErrConflict):
		return http.StatusConflict
	case service.IsKind(err, service.ErrInvalidState), service.IsKind(err, service.ErrValidation):
		return http.StatusBadRequest
	case service.IsKind(err, service.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": msg}.  Internal failures are logged
// and answered with a generic message.
func writeError(c echo.Context, logger *zap.Logger, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", requestID(c)),
			zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}

func requestID(c echo.Context) string {
	id, _ := c.Get(middleware.CtxRequestID).(string)
	return id
}

// getUserID returns the staff id stored by the JWT middleware.
func getUserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(middleware.CtxUserID).(uint64)
	return id, ok && id > 0
}
