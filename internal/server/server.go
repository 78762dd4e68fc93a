package server

import (
	"context"
	"net/http"
	"storefront-checkout/internal/handler"
	authmw "storefront-checkout/internal/middleware"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

type Services struct {
	Order   service.OrderService
	Coupon  service.CouponService
	Product service.ProductService
	HotDeal service.HotDealService
	Calc    *pricing.Calculator
}

type Server struct {
	echo           *echo.Echo
	apiToken       string
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
	couponHandler  *handler.CouponHandler
	productHandler *handler.ProductHandler
	hotDealHandler *handler.HotDealHandler
}

func NewServer(services Services, apiToken string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(log.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"remote_ip":  v.RemoteIP,
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		apiToken:       apiToken,
		orderHandler:   handler.NewOrderHandler(services.Order, services.Calc),
		paymentHandler: handler.NewPaymentHandler(services.Order),
		couponHandler:  handler.NewCouponHandler(services.Coupon),
		productHandler: handler.NewProductHandler(services.Product),
		hotDealHandler: handler.NewHotDealHandler(services.HotDeal),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- storefront --------
	api.GET("/products", s.productHandler.ListActive)
	api.GET("/hot-deals", s.hotDealHandler.ListActive)
	api.POST("/coupons/validate", s.couponHandler.Validate)

	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.CreateOrder)
	orders.GET("/:orderNumber", s.orderHandler.GetOrder)
	orders.POST("/:orderNumber/pay", s.orderHandler.RetryPayment)

	// -------- payment provider callbacks --------
	payments := api.Group("/payments")
	payments.POST("/verify", s.paymentHandler.Verify)
	payments.POST("/webhook", s.paymentHandler.Webhook)
	payments.GET("/config", s.paymentHandler.Config)

	// -------- admin --------
	admin := api.Group("/admin", authmw.AuthMiddleware(s.apiToken))

	admin.GET("/products", s.productHandler.List)
	admin.POST("/products", s.productHandler.Create)
	admin.GET("/products/:id", s.productHandler.Get)
	admin.PUT("/products/:id", s.productHandler.Update)
	admin.DELETE("/products/:id", s.productHandler.Delete)

	admin.GET("/coupons", s.couponHandler.ListCoupons)
	admin.POST("/coupons", s.couponHandler.CreateCoupon)
	admin.DELETE("/coupons/:id", s.couponHandler.DeleteCoupon)

	admin.GET("/hot-deals", s.hotDealHandler.List)
	admin.POST("/hot-deals", s.hotDealHandler.Create)
	admin.PUT("/hot-deals/reorder", s.hotDealHandler.Reorder)
	admin.DELETE("/hot-deals/:id", s.hotDealHandler.Delete)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
