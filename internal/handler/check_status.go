package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/service"
)

// LedgerService is the check-status workflow.
type LedgerService interface {
	AddEntry(ctx context.Context, in service.AddEntryInput) (*model.CheckStatusEntry, error)
	MarkReady(ctx context.Context, entryID string) (*model.CheckStatusEntry, error)
	Collect(ctx context.Context, entryID string) error
	List(ctx context.Context) ([]model.CheckStatusEntry, error)
}

type CheckStatusHandler struct {
	Ledger LedgerService
	Logger *zap.Logger
}

func NewCheckStatusHandler(l LedgerService, logger *zap.Logger) *CheckStatusHandler {
	return &CheckStatusHandler{Ledger: l, Logger: logger}
}

// Add handles POST /v1/check-status.
func (h *CheckStatusHandler) Add(c echo.Context) error {
	var req service.AddEntryInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	e, err := h.Ledger.AddEntry(ctx, req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// Ready handles PUT /v1/check-status/:id/ready.
func (h *CheckStatusHandler) Ready(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	e, err := h.Ledger.MarkReady(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Collect handles DELETE /v1/check-status/:id/collected.  Collecting an
// entry that is already gone answers 204 like a successful collect, so a
// board that retries does not show an error.
func (h *CheckStatusHandler) Collect(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Ledger.Collect(ctx, c.Param("id")); err != nil && !service.IsKind(err, service.ErrNotFound) {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// List handles GET /v1/check-status.
func (h *CheckStatusHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	entries, err := h.Ledger.List(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, entries)
}
