package handler

import (
	"io"
	"net/http"
	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	orderService service.OrderService
}

func NewPaymentHandler(orderService service.OrderService) *PaymentHandler {
	return &PaymentHandler{
		orderService: orderService,
	}
}

func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body failed")
	}

	result, err := h.orderService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		log.WithError(err).Warn("webhook rejected")
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.VerifyPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.orderService.VerifyPayment(ctx, req.TransactionID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orderService.GatewayConfig())
}
