package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/client"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	WebhookKeyHeader = "X-Webhook-Key"
	webhookPath      = "/api/payments/webhook"
	maxLineQuantity  = 100
)

type CreateOrderInput struct {
	IdempotencyKey string
	CustomerID     string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Items          []pricing.CartLine
	CouponCode     string
	Currency       string
	DeliveryType   string
	Notes          string
	// Origin is the calling site, used for redirect urls and the client id.
	Origin string
}

// PaymentSessionError reports a persisted order whose payment session could
// not be created. The order stays in created and can be retried.
type PaymentSessionError struct {
	Order *model.Order
	Err   error
}

func (e *PaymentSessionError) Error() string {
	return fmt.Sprintf("create payment session for %s: %v", e.Order.OrderNumber, e.Err)
}

func (e *PaymentSessionError) Unwrap() error { return e.Err }

type WebhookPayload struct {
	TransactionID string                 `json:"transaction_id"`
	Status        string                 `json:"status"`
	OrderNumber   string                 `json:"order_number"`
	PaymentMethod string                 `json:"payment_method"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type WebhookResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Applied       bool   `json:"applied"`
}

type VerifyResult struct {
	Payment *client.VerifiedPayment `json:"payment"`
	Order   *model.Order            `json:"order"`
	Applied bool                    `json:"applied"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, in *CreateOrderInput) (*model.Order, error)
	RetryPayment(ctx context.Context, orderNumber, origin string) (*model.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*model.Order, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error)
	VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error)
	GatewayConfig() client.GatewayConfig
}

type OrderServiceConfig struct {
	BaseURL    string
	WebhookKey string
}

type orderServiceImpl struct {
	db               *gorm.DB
	gateway          client.GatewayClient
	calc             *pricing.Calculator
	couponService    CouponService
	productRepo      repository.ProductRepository
	orderRepo        repository.OrderRepository
	webhookEventRepo repository.WebhookEventRepository
	cfg              OrderServiceConfig
	verifyGroup      singleflight.Group
	now              func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	gateway client.GatewayClient,
	calc *pricing.Calculator,
	couponService CouponService,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	webhookEventRepo repository.WebhookEventRepository,
	cfg OrderServiceConfig,
) OrderService {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &orderServiceImpl{
		db:               db,
		gateway:          gateway,
		calc:             calc,
		couponService:    couponService,
		productRepo:      productRepo,
		orderRepo:        orderRepo,
		webhookEventRepo: webhookEventRepo,
		cfg:              cfg,
		now:              time.Now,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, in *CreateOrderInput) (*model.Order, error) {
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		existing, err := s.orderRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return s.ensurePaymentSession(ctx, existing, in.Origin)
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("find order by idempotency key: %w", err)
		}
	}

	productIDs := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get many products by item ids: %w", err)
	}

	totals := s.calc.Totals(in.Items, products)
	if len(totals.Unresolved) > 0 {
		return nil, apperror.Validation("items", "unknown or unavailable products: "+strings.Join(totals.Unresolved, ", "))
	}

	order := s.newOrder(in, products)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if code := strings.TrimSpace(in.CouponCode); code != "" {
			coupon, discount, err := s.couponService.Redeem(ctx, tx, code, totals.Subtotal)
			if err != nil {
				return err
			}
			totals.ApplyDiscount(discount)
			order.CouponCode = &coupon.Code
			order.CouponDiscount = decimal.NewNullDecimal(totals.Discount)
		}
		order.Subtotal = totals.Subtotal
		order.Total = totals.Total

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return pkgerrors.Wrap(err, "store order in db")
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, order.Items); err != nil {
			return pkgerrors.Wrap(err, "store order items in db")
		}
		return nil
	})
	if err != nil {
		// a concurrent request with the same key won the insert
		if in.IdempotencyKey != "" && errors.Is(err, apperror.ErrConflict) {
			if existing, findErr := s.orderRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey); findErr == nil {
				return s.ensurePaymentSession(ctx, existing, in.Origin)
			}
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
		"currency":     order.Currency,
		"coupon":       in.CouponCode,
	}).Info("order created")

	return s.ensurePaymentSession(ctx, order, in.Origin)
}

func (s *orderServiceImpl) validateCreate(in *CreateOrderInput) error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = s.calc.BaseCurrency()
	}

	switch {
	case in.CustomerName == "":
		return apperror.Validation("customer_name", "is required")
	case in.CustomerEmail == "":
		return apperror.Validation("customer_email", "is required")
	case len(in.Items) == 0:
		return apperror.Validation("items", "cart is empty")
	case !s.calc.SupportsCurrency(in.Currency):
		return apperror.Validation("currency", "unsupported currency "+in.Currency)
	}

	for i, item := range in.Items {
		if item.ProductID == "" {
			return apperror.Validation(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if item.Quantity <= 0 || item.Quantity > maxLineQuantity {
			return apperror.Validation(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("must be between 1 and %d", maxLineQuantity))
		}
	}
	return nil
}

func (s *orderServiceImpl) newOrder(in *CreateOrderInput, products []*model.Product) *model.Order {
	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	order := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "ORD-" + ulid.Make().String(),
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		Status:        model.OrderCreated,
		PaymentStatus: model.PaymentPending,
		Currency:      in.Currency,
		DeliveryType:  in.DeliveryType,
		Notes:         in.Notes,
	}
	if in.IdempotencyKey != "" {
		order.IdempotencyKey = &in.IdempotencyKey
	}
	if in.CustomerID != "" {
		order.CustomerID = &in.CustomerID
	}

	order.Items = make([]*model.OrderItem, len(in.Items))
	for i, line := range in.Items {
		product := byID[line.ProductID]
		order.Items[i] = &model.OrderItem{
			OrderID:     order.ID,
			Position:    i,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Pricing[0].Price,
			Duration:    product.Pricing[0].Duration,
		}
	}

	return order
}

func (s *orderServiceImpl) RetryPayment(ctx context.Context, orderNumber, origin string) (*model.Order, error) {
	order, err := s.orderRepo.FindByOrderNumber(ctx, nil, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != model.PaymentPending || order.Status.Terminal() {
		return nil, apperror.Conflict("order %s is already %s", orderNumber, order.Status)
	}

	return s.ensurePaymentSession(ctx, order, origin)
}

// ensurePaymentSession asks the provider for a hosted session unless the order
// already has one or has settled. A failure leaves the order untouched.
func (s *orderServiceImpl) ensurePaymentSession(ctx context.Context, order *model.Order, origin string) (*model.Order, error) {
	if order.PaymentURL != "" || order.PaymentStatus != model.PaymentPending || order.Status != model.OrderCreated {
		return order, nil
	}

	frontend, clientID := s.callbackBase(origin)
	resp, err := s.gateway.CreatePayment(ctx, &client.CreatePaymentRequest{
		FullName:   order.CustomerName,
		Email:      order.CustomerEmail,
		Amount:     s.calc.ChargeAmount(order.Total, order.Currency),
		SuccessURL: fmt.Sprintf("%s/checkout/success?order=%s", frontend, url.QueryEscape(order.OrderNumber)),
		CancelURL:  fmt.Sprintf("%s/checkout/cancel?order=%s", frontend, url.QueryEscape(order.OrderNumber)),
		WebhookURL: s.cfg.BaseURL + webhookPath,
		Metadata: map[string]string{
			"order_number": order.OrderNumber,
			"order_id":     order.ID,
		},
		Client: clientID,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"order_number": order.OrderNumber,
			"error":        err,
		}).Warn("payment session not created")
		return nil, &PaymentSessionError{Order: order, Err: err}
	}

	attached, err := s.orderRepo.AttachPaymentSession(ctx, order.OrderNumber, resp.PaymentURL)
	if err != nil {
		return nil, fmt.Errorf("store payment session: %w", err)
	}
	if !attached {
		// another attempt attached first, or the order settled meanwhile
		return s.orderRepo.FindByOrderNumber(ctx, nil, order.OrderNumber)
	}

	order.Status = model.OrderAwaitingPayment
	order.PaymentURL = resp.PaymentURL
	return order, nil
}

func (s *orderServiceImpl) callbackBase(origin string) (string, string) {
	base := s.cfg.BaseURL
	if u, err := url.Parse(origin); err == nil && u.Scheme != "" && u.Host != "" {
		base = u.Scheme + "://" + u.Host
	}

	clientID := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		clientID = u.Host
	}
	return base, clientID
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	return s.orderRepo.FindByOrderNumber(ctx, nil, orderNumber)
}

func (s *orderServiceImpl) GatewayConfig() client.GatewayConfig {
	return s.gateway.GetConfig()
}

func (s *orderServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error) {
	if err := s.verifyWebhookKey(headers); err != nil {
		return nil, err
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperror.Validation("body", "decode webhook payload: "+err.Error())
	}

	payload.TransactionID = strings.TrimSpace(payload.TransactionID)
	payload.Status = strings.ToUpper(strings.TrimSpace(payload.Status))
	if payload.TransactionID == "" {
		return nil, apperror.Validation("transaction_id", "is required")
	}
	if payload.Status == "" {
		return nil, apperror.Validation("status", "is required")
	}
	orderNumber := orderNumberFrom(payload.Metadata, payload.OrderNumber)
	if orderNumber == "" {
		return nil, apperror.Validation("metadata.order_number", "is required")
	}

	logger := log.WithFields(log.Fields{
		"order_number":   orderNumber,
		"transaction_id": payload.TransactionID,
		"status":         payload.Status,
	})
	result := &WebhookResult{
		Success:       true,
		TransactionID: payload.TransactionID,
		Status:        payload.Status,
	}

	update, terminal := mapProviderStatus(payload.Status)
	if !terminal {
		if _, err := s.orderRepo.FindByOrderNumber(ctx, nil, orderNumber); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.Validation("metadata.order_number", "unknown order "+orderNumber)
			}
			return nil, fmt.Errorf("find order for webhook: %w", err)
		}
		logger.Info("webhook with non-terminal status ignored")
		return result, nil
	}

	eventID := repository.WebhookEventID(payload.TransactionID, payload.Status)
	processed, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		logger.WithError(err).Error("webhook event lookup failed")
		return nil, fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		logger.Info("duplicate webhook delivery")
		return result, nil
	}

	update.PaymentID = payload.TransactionID
	update.PaymentMethod = payload.PaymentMethod
	_, applied, err := s.applyTerminalStatus(ctx, orderNumber, update, &model.WebhookEvent{
		EventID:       eventID,
		OrderNumber:   orderNumber,
		TransactionID: payload.TransactionID,
		Status:        payload.Status,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Validation("metadata.order_number", "unknown order "+orderNumber)
		}
		// the provider retries on 5xx; this is the only channel for the outcome
		logger.WithError(err).Error("webhook persistence failed")
		return nil, fmt.Errorf("apply webhook: %w", err)
	}

	result.Applied = applied
	logger.WithField("applied", applied).Info("webhook reconciled")
	return result, nil
}

func (s *orderServiceImpl) verifyWebhookKey(headers http.Header) error {
	if s.cfg.WebhookKey == "" {
		return nil
	}
	got := headers.Get(WebhookKeyHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookKey)) != 1 {
		return pkgerrors.Wrap(apperror.ErrUnauthorized, "invalid webhook key")
	}
	return nil
}

// orderNumberFrom resolves the order reference a provider echoes back, from
// the metadata bag first and the top-level field second. Webhook and verify
// both resolve orders through it.
func orderNumberFrom(metadata map[string]interface{}, fallback string) string {
	for _, key := range []string{"order_number", "orderNumber"} {
		if v := client.MetadataValue(metadata, key); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}

func (s *orderServiceImpl) VerifyPayment(ctx context.Context, transactionID string) (*VerifyResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, apperror.Validation("transaction_id", "is required")
	}

	payment, err := s.verifyShared(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "verify transaction %s", transactionID)
	}
	if payment == nil {
		return nil, pkgerrors.Wrapf(apperror.ErrProviderRejected, "transaction %s unknown to provider", transactionID)
	}

	orderNumber := orderNumberFrom(payment.Metadata, "")
	if orderNumber == "" {
		return nil, apperror.Validation("transaction_id", "transaction carries no order reference")
	}

	logger := log.WithFields(log.Fields{
		"order_number":   orderNumber,
		"transaction_id": transactionID,
		"status":         payment.Status,
	})

	update, terminal := mapProviderStatus(payment.Status)
	if !terminal {
		order, err := s.orderRepo.FindByOrderNumber(ctx, nil, orderNumber)
		if err != nil {
			return nil, unknownVerifiedOrder(err, orderNumber)
		}
		return &VerifyResult{Payment: payment, Order: order}, nil
	}

	update.PaymentID = transactionID
	update.PaymentMethod = payment.PaymentMethod
	order, applied, err := s.applyTerminalStatus(ctx, orderNumber, update, nil)
	if err != nil {
		return nil, unknownVerifiedOrder(err, orderNumber)
	}

	if update.PaymentStatus == model.PaymentCompleted {
		expected := s.calc.ChargeAmount(order.Total, order.Currency)
		if !payment.Amount.Equal(decimal.RequireFromString(expected)) {
			logger.WithFields(log.Fields{
				"expected": expected,
				"paid":     payment.Amount.String(),
			}).Warn("paid amount differs from order total")
		}
	}

	logger.WithField("applied", applied).Info("payment verified")
	return &VerifyResult{Payment: payment, Order: order, Applied: applied}, nil
}

// verifyShared coalesces concurrent verifies of one transaction into a single
// provider call. The call runs detached from any one caller, bounded by the
// gateway timeout, and each caller stops waiting when its own ctx ends.
func (s *orderServiceImpl) verifyShared(ctx context.Context, transactionID string) (*client.VerifiedPayment, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.verifyGroup.DoChan(transactionID, func() (interface{}, error) {
		return s.gateway.VerifyPayment(detached, transactionID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		payment, _ := res.Val.(*client.VerifiedPayment)
		return payment, nil
	}
}

// unknownVerifiedOrder reports a verified transaction naming an order we do
// not have as a failed verification rather than a missing resource.
func unknownVerifiedOrder(err error, orderNumber string) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.Validation("transaction_id", "transaction references unknown order "+orderNumber)
	}
	return err
}

// applyTerminalStatus is the one place an order's payment settles. Both the
// webhook and the verify path go through it; the conditional update inside
// makes the first caller win and every later one a no-op.
func (s *orderServiceImpl) applyTerminalStatus(ctx context.Context, orderNumber string, update repository.TerminalUpdate, event *model.WebhookEvent) (*model.Order, bool, error) {
	update.CompletedAt = s.now()

	var (
		order   *model.Order
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.orderRepo.FindByOrderNumber(ctx, tx, orderNumber); err != nil {
			return err
		}

		var err error
		applied, err = s.orderRepo.MarkTerminal(ctx, tx, orderNumber, update)
		if err != nil {
			return pkgerrors.Wrap(err, "mark order terminal")
		}

		if event != nil {
			if err := s.webhookEventRepo.MarkProcessed(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(err, "mark webhook processed")
			}
		}

		order, err = s.orderRepo.FindByOrderNumber(ctx, tx, orderNumber)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return order, applied, nil
}

func mapProviderStatus(status string) (repository.TerminalUpdate, bool) {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return repository.TerminalUpdate{Status: model.OrderCompleted, PaymentStatus: model.PaymentCompleted}, true
	case "", "PENDING", "PROCESSING":
		return repository.TerminalUpdate{}, false
	case "CANCELLED", "CANCELED":
		return repository.TerminalUpdate{Status: model.OrderCancelled, PaymentStatus: model.PaymentFailed}, true
	default:
		return repository.TerminalUpdate{Status: model.OrderFailed, PaymentStatus: model.PaymentFailed}, true
	}
}
