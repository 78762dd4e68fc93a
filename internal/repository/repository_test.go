package repository

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-checkout/internal/client"

	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrud_ProductLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testutil.NewDB(t))

	p := &model.Product{
		ID:      uuid.NewString(),
		Name:    "Netflix Premium",
		Slug:    "netflix-premium",
		Status:  model.ProductActive,
		Pricing: []model.PricingTier{{Duration: "1 month", Price: decimal.RequireFromString("12.50")}},
	}
	require.NoError(t, repo.Create(ctx, nil, p))

	dup := *p
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, repo.Create(ctx, nil, &dup), apperror.ErrConflict)

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, found.Pricing, 1)
	assert.Equal(t, "12.50", found.Pricing[0].Price.StringFixed(2))

	found.Status = model.ProductInactive
	require.NoError(t, repo.Update(ctx, nil, found))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.Delete(ctx, nil, p.ID))
	_, err = repo.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, nil, p.ID), apperror.ErrNotFound)
}

func TestCoupon_IncrementUsageRespectsLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testutil.NewDB(t))

	limit := 2
	c := &model.Coupon{
		ID:            uuid.NewString(),
		Code:          "SAVE10",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		UsageLimit:    &limit,
	}
	require.NoError(t, repo.Create(ctx, nil, c))

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementUsage(ctx, nil, c.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.IncrementUsage(ctx, nil, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByCode(ctx, nil, " save10 ")
	require.NoError(t, err)
	assert.Equal(t, 2, found.CurrentUsage)
}

func TestOrder_MarkTerminalOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testutil.NewDB(t))

	order := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "ORD-1",
		CustomerName:  "Jane",
		CustomerEmail: "jane@example.com",
		Status:        model.OrderCreated,
		PaymentStatus: model.PaymentPending,
		Subtotal:      decimal.NewFromInt(10),
		Total:         decimal.NewFromInt(10),
		Currency:      "USD",
	}
	require.NoError(t, repo.Create(ctx, nil, order))
	require.NoError(t, repo.CreateOrderItems(ctx, nil, []*model.OrderItem{
		{OrderID: order.ID, Position: 1, ProductID: "b", ProductName: "B", Quantity: 1, Price: decimal.NewFromInt(4)},
		{OrderID: order.ID, Position: 0, ProductID: "a", ProductName: "A", Quantity: 2, Price: decimal.NewFromInt(3)},
	}))

	attached, err := repo.AttachPaymentSession(ctx, "ORD-1", "https://pay.example/1")
	require.NoError(t, err)
	assert.True(t, attached)
	attached, err = repo.AttachPaymentSession(ctx, "ORD-1", "https://pay.example/2")
	require.NoError(t, err)
	assert.False(t, attached)

	applied, err := repo.MarkTerminal(ctx, nil, "ORD-1", TerminalUpdate{
		Status:        model.OrderCompleted,
		PaymentStatus: model.PaymentCompleted,
		PaymentID:     "TX-1",
		CompletedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.MarkTerminal(ctx, nil, "ORD-1", TerminalUpdate{
		Status:        model.OrderFailed,
		PaymentStatus: model.PaymentFailed,
		PaymentID:     "TX-2",
	})
	require.NoError(t, err)
	assert.False(t, applied)

	found, err := repo.FindByOrderNumber(ctx, nil, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, found.Status)
	assert.Equal(t, model.PaymentCompleted, found.PaymentStatus)
	require.NotNil(t, found.PaymentID)
	assert.Equal(t, "TX-1", *found.PaymentID)
	assert.Equal(t, "https://pay.example/1", found.PaymentURL)
	require.NotNil(t, found.CompletedAt)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "a", found.Items[0].ProductID)

	_, err = repo.FindByOrderNumber(ctx, nil, "ORD-404")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestHotDeal_ListOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewHotDealRepository(testutil.NewDB(t))

	base := time.Now().Add(-time.Hour)
	deals := []*model.HotDeal{
		{ID: "old-1", ProductID: "p", IsActive: true, SortOrder: 1, CreatedAt: base},
		{ID: "new-1", ProductID: "p", IsActive: true, SortOrder: 1, CreatedAt: base.Add(time.Minute)},
		{ID: "first", ProductID: "p", IsActive: true, SortOrder: 0, CreatedAt: base},
		{ID: "hidden", ProductID: "p", IsActive: false, SortOrder: 0, CreatedAt: base},
	}
	for _, d := range deals {
		require.NoError(t, repo.Create(ctx, nil, d))
	}

	active, err := repo.ListOrdered(ctx, nil, true)
	require.NoError(t, err)

	var ids []string
	for _, d := range active {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"first", "new-1", "old-1"}, ids)

	assert.ErrorIs(t, repo.UpdateSortOrder(ctx, nil, "missing", 3), apperror.ErrNotFound)
}

func TestConditionalUpdates_AcrossConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkout.db")

	first := testutil.OpenFileDB(t, path)
	require.NoError(t, client.Migrate(first))
	second := testutil.OpenFileDB(t, path)

	coupons := []CouponRepository{NewCouponRepository(first), NewCouponRepository(second)}
	orders := []OrderRepository{NewOrderRepository(first), NewOrderRepository(second)}

	limit := 5
	coupon := &model.Coupon{
		ID:            uuid.NewString(),
		Code:          "RACE",
		DiscountType:  model.DiscountFixed,
		DiscountValue: decimal.NewFromInt(1),
		UsageLimit:    &limit,
	}
	require.NoError(t, coupons[0].Create(ctx, nil, coupon))

	order := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "ORD-RACE",
		CustomerName:  "Jane",
		CustomerEmail: "jane@example.com",
		Status:        model.OrderAwaitingPayment,
		PaymentStatus: model.PaymentPending,
		Subtotal:      decimal.NewFromInt(5),
		Total:         decimal.NewFromInt(5),
		Currency:      "USD",
	}
	require.NoError(t, orders[0].Create(ctx, nil, order))

	const workers = 20
	var (
		wg       sync.WaitGroup
		redeemed atomic.Int32
		settled  atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			ok, err := coupons[i%2].IncrementUsage(ctx, nil, coupon.ID)
			if assert.NoError(t, err) && ok {
				redeemed.Add(1)
			}

			status := model.OrderCompleted
			payment := model.PaymentCompleted
			if i%2 == 1 {
				status, payment = model.OrderFailed, model.PaymentFailed
			}
			applied, err := orders[i%2].MarkTerminal(ctx, nil, order.OrderNumber, TerminalUpdate{
				Status:        status,
				PaymentStatus: payment,
				PaymentID:     "TX-RACE",
				CompletedAt:   time.Now(),
			})
			if assert.NoError(t, err) && applied {
				settled.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, limit, redeemed.Load())
	assert.EqualValues(t, 1, settled.Load())

	found, err := coupons[1].FindByCode(ctx, nil, "RACE")
	require.NoError(t, err)
	assert.Equal(t, limit, found.CurrentUsage)

	settledOrder, err := orders[1].FindByOrderNumber(ctx, nil, order.OrderNumber)
	require.NoError(t, err)
	assert.NotEqual(t, model.PaymentPending, settledOrder.PaymentStatus)
	assert.True(t, settledOrder.Status.Terminal())
}
