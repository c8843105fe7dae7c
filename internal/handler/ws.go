package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Upgrader registers a WebSocket connection with the live board hub.
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

type WSHandler struct {
	Hub    Upgrader
	Logger *zap.Logger
}

// Stream handles GET /v1/ws.  A failed upgrade has already been answered
// by the upgrader.
func (h *WSHandler) Stream(c echo.Context) error {
	if err := h.Hub.ServeWS(c.Response(), c.Request()); err != nil {
		h.Logger.Debug("websocket upgrade failed", zap.String("request_id", requestID(c)), zap.Error(err))
	}
	return nil
}
