package handler

import (
	"errors"
	"net/http"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

const idempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	orderService service.OrderService
	calc         *pricing.Calculator
}

func NewOrderHandler(orderService service.OrderService, calc *pricing.Calculator) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		calc:         calc,
	}
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	return c.Validate(req)
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	items := make([]pricing.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, pricing.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orderService.CreateOrder(ctx, &service.CreateOrderInput{
		IdempotencyKey: c.Request().Header.Get(idempotencyKeyHeader),
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Items:          items,
		CouponCode:     req.CouponCode,
		Currency:       req.Currency,
		DeliveryType:   req.DeliveryType,
		Notes:          req.Notes,
		Origin:         requestOrigin(c),
	})
	if err != nil {
		return h.orderError(c, err)
	}

	return c.JSON(http.StatusCreated, h.orderResponse(order))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("orderNumber"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, h.orderResponse(order))
}

func (h *OrderHandler) RetryPayment(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.RetryPayment(ctx, c.Param("orderNumber"), requestOrigin(c))
	if err != nil {
		return h.orderError(c, err)
	}

	return c.JSON(http.StatusOK, h.orderResponse(order))
}

func (h *OrderHandler) orderResponse(order *model.Order) *dto.OrderResponse {
	return &dto.OrderResponse{
		Order:          order,
		PaymentURL:     order.PaymentURL,
		FormattedTotal: h.calc.FormatPrice(order.Total, order.Currency),
	}
}

// orderError keeps the persisted order in the body when only the payment
// session failed, so the client can offer a retry.
func (h *OrderHandler) orderError(c echo.Context, err error) error {
	var sessionErr *service.PaymentSessionError
	if !errors.As(err, &sessionErr) {
		return err
	}

	return c.JSON(apperror.HTTPStatus(err), &dto.PaymentSessionFailure{
		Message:   sessionErr.Err.Error(),
		Retryable: errors.Is(err, apperror.ErrProviderUnavailable),
		Order:     sessionErr.Order,
	})
}

func requestOrigin(c echo.Context) string {
	if origin := c.Request().Header.Get(echo.HeaderOrigin); origin != "" {
		return origin
	}
	return c.Request().Referer()
}
