package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/service"
)

// SectionService manages section records.
type SectionService interface {
	Create(ctx context.Context, in service.SectionInput) (*model.Section, error)
	List(ctx context.Context) ([]model.Section, error)
	Rename(ctx context.Context, id string, in service.SectionInput) (*model.Section, error)
	Delete(ctx context.Context, id string) error
}

type SectionHandler struct {
	Sections SectionService
	Logger   *zap.Logger
}

func NewSectionHandler(s SectionService, logger *zap.Logger) *SectionHandler {
	return &SectionHandler{Sections: s, Logger: logger}
}

func (h *SectionHandler) Create(c echo.Context) error {
	var req service.SectionInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Sections.Create(ctx, req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *SectionHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Sections.List(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Rename handles PUT /v1/sections/:id; every ticket under the old name
// moves with it.
func (h *SectionHandler) Rename(c echo.Context) error {
	var req service.SectionInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Sections.Rename(ctx, c.Param("id"), req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *SectionHandler) Delete(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Sections.Delete(ctx, c.Param("id")); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
