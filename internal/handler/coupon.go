package handler

import (
	"net/http"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type CouponHandler struct {
	couponService service.CouponService
}

func NewCouponHandler(couponService service.CouponService) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
	}
}

func (h *CouponHandler) Validate(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ValidateCouponRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.couponService.Validate(ctx, req.Code, req.Subtotal, req.Currency)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CouponHandler) CreateCoupon(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CouponRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	coupon := req.ToModel()
	if err := h.couponService.CreateCoupon(ctx, coupon); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, coupon)
}

func (h *CouponHandler) ListCoupons(c echo.Context) error {
	coupons, err := h.couponService.ListCoupons(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, coupons)
}

func (h *CouponHandler) DeleteCoupon(c echo.Context) error {
	if err := h.couponService.DeleteCoupon(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
