package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu          sync.Mutex
	createErr   error
	created     []*client.CreatePaymentRequest
	payments    map[string]*client.VerifiedPayment
	verifyCalls int

	// when set, VerifyPayment signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*client.VerifiedPayment{}}
}

func (g *fakeGateway) CreatePayment(_ context.Context, req *client.CreatePaymentRequest) (*client.CreatePaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &client.CreatePaymentResponse{
		Status:     true,
		PaymentURL: fmt.Sprintf("https://pay.example/session/%d", len(g.created)),
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, transactionID string) (*client.VerifiedPayment, error) {
	if g.release != nil {
		g.started <- struct{}{}
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.verifyCalls++
	return g.payments[transactionID], nil
}

func (g *fakeGateway) GetConfig() client.GatewayConfig {
	return client.GatewayConfig{Configured: true, MerchantID: "m-1", IsTest: true, BaseURL: "https://pay.example"}
}

func (g *fakeGateway) setCreateErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	calc     *pricing.Calculator
	products repository.ProductRepository
	coupons  repository.CouponRepository
	orders   repository.OrderRepository
	hotDeals repository.HotDealRepository
	couponSv CouponService
	orderSv  *orderServiceImpl
}

func newFixture(t *testing.T, webhookKey string) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	f := &fixture{
		db:       db,
		gateway:  newFakeGateway(),
		calc:     pricing.NewCalculator(config.Pricing{}),
		products: repository.NewProductRepository(db),
		coupons:  repository.NewCouponRepository(db),
		orders:   repository.NewOrderRepository(db),
		hotDeals: repository.NewHotDealRepository(db),
	}
	f.couponSv = NewCouponService(f.coupons, f.calc)
	f.orderSv = NewOrderService(
		db,
		f.gateway,
		f.calc,
		f.couponSv,
		f.products,
		f.orders,
		repository.NewWebhookEventRepository(db),
		OrderServiceConfig{BaseURL: "https://shop.example/", WebhookKey: webhookKey},
	).(*orderServiceImpl)
	return f
}

func (f *fixture) addProduct(t *testing.T, name, price string) *model.Product {
	t.Helper()

	p := &model.Product{
		ID:      uuid.NewString(),
		Name:    name,
		Slug:    uuid.NewString(),
		Status:  model.ProductActive,
		Pricing: []model.PricingTier{{Duration: "1 month", Price: decimal.RequireFromString(price)}},
	}
	require.NoError(t, f.products.Create(context.Background(), nil, p))
	return p
}

func (f *fixture) addCoupon(t *testing.T, c *model.Coupon) *model.Coupon {
	t.Helper()

	c.ID = uuid.NewString()
	require.NoError(t, f.coupons.Create(context.Background(), nil, c))
	return c
}

func (f *fixture) checkout(productID string, qty int, coupon string) *CreateOrderInput {
	return &CreateOrderInput{
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		Items:         []pricing.CartLine{{ProductID: productID, Quantity: qty}},
		CouponCode:    coupon,
		Origin:        "https://store.example/cart",
	}
}

func intPtr(i int) *int { return &i }

func decPtr(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
