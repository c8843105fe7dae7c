package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/service"
)

// maxUploadBytes caps the spreadsheet accepted by Import.
const maxUploadBytes = 10 << 20

// CustomerService manages customer reference data.
type CustomerService interface {
	Create(ctx context.Context, in service.CustomerInput) (*model.Customer, error)
	List(ctx context.Context) ([]model.Customer, error)
	GetByMembership(ctx context.Context, membershipNo string) (*model.Customer, error)
	Update(ctx context.Context, id string, in service.CustomerInput) (*model.Customer, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, r io.Reader) (*service.ImportResult, error)
}

type CustomerHandler struct {
	Customers CustomerService
	Logger    *zap.Logger
}

func NewCustomerHandler(s CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{Customers: s, Logger: logger}
}

func (h *CustomerHandler) Create(c echo.Context) error {
	var req service.CustomerInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cu, err := h.Customers.Create(ctx, req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, cu)
}

func (h *CustomerHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Customers.List(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/customers/:membership, the lookup done at the desk
// before enqueuing.
func (h *CustomerHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cu, err := h.Customers.GetByMembership(ctx, c.Param("membership"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, cu)
}

// Update handles PUT /v1/customers/:id.  Empty fields keep their values.
func (h *CustomerHandler) Update(c echo.Context) error {
	var req service.CustomerInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cu, err := h.Customers.Update(ctx, c.Param("id"), req)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, cu)
}

func (h *CustomerHandler) Delete(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Customers.Delete(ctx, c.Param("id")); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Import handles POST /v1/customers/import with the workbook in the
// multipart field "file".
func (h *CustomerHandler) Import(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	if fh.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read file"})
	}
	defer f.Close()

	// Large sheets take longer than the default request budget.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 4*requestTimeout)
	defer cancel()

	res, err := h.Customers.Import(ctx, io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, res)
}
