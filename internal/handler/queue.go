package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/service"
)

// QueueService is the queue side of the service layer used by QueueHandler.
type QueueService interface {
	Enqueue(ctx context.Context, in service.EnqueueInput) (*model.Ticket, error)
	Dequeue(ctx context.Context, ticketID string) (*model.Ticket, error)
	List(ctx context.Context, section string) ([]model.Ticket, error)
	ListAll(ctx context.Context) ([]model.Ticket, error)
}

// ServingService finishes the current service of a section.
type ServingService interface {
	FinishService(ctx context.Context, section string) (*service.AdvanceResult, error)
}

// QueueHandler serves the section queues and the serving marker.
type QueueHandler struct {
	Queue   QueueService
	Serving ServingService
	Logger  *zap.Logger
}

func NewQueueHandler(q QueueService, s ServingService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{Queue: q, Serving: s, Logger: logger}
}

// Enqueue handles POST /v1/queue.
func (h *QueueHandler) Enqueue(c echo.Context) error {
	var req service.EnqueueInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Queue.Enqueue(ctx, req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Dequeue handles DELETE /v1/queue/:id and returns the removed ticket.
func (h *QueueHandler) Dequeue(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.Queue.Dequeue(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, t)
}

// List handles GET /v1/queue/:section.
func (h *QueueHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	tickets, err := h.Queue.List(ctx, c.Param("section"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, tickets)
}

// ListAll handles GET /v1/queues.
func (h *QueueHandler) ListAll(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	tickets, err := h.Queue.ListAll(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, tickets)
}

// Finish handles POST /v1/sections/:section/finish.
func (h *QueueHandler) Finish(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Serving.FinishService(ctx, c.Param("section"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, res)
}
