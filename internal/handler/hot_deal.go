package handler

import (
	"net/http"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type HotDealHandler struct {
	hotDealService service.HotDealService
}

func NewHotDealHandler(hotDealService service.HotDealService) *HotDealHandler {
	return &HotDealHandler{
		hotDealService: hotDealService,
	}
}

func (h *HotDealHandler) ListActive(c echo.Context) error {
	deals, err := h.hotDealService.List(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, deals)
}

func (h *HotDealHandler) List(c echo.Context) error {
	deals, err := h.hotDealService.ListAll(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, deals)
}

func (h *HotDealHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.HotDealRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	deal := req.ToModel()
	if err := h.hotDealService.Create(ctx, deal); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, deal)
}

func (h *HotDealHandler) Delete(c echo.Context) error {
	if err := h.hotDealService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *HotDealHandler) Reorder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ReorderHotDealsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updates := make([]service.SortUpdate, 0, len(req.Deals))
	for _, d := range req.Deals {
		updates = append(updates, service.SortUpdate{ID: d.ID, SortOrder: d.SortOrder})
	}

	deals, err := h.hotDealService.Reorder(ctx, updates)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, deals)
}
