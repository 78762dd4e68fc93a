package dto

import (
	"time"

	"storefront-checkout/internal/model"

	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}

type CreateOrderRequest struct {
	CustomerID    string  `json:"customer_id"`
	CustomerName  string  `json:"customer_name" validate:"required,max=255"`
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	CustomerPhone string  `json:"customer_phone" validate:"max=32"`
	Items         []*Item `json:"items" validate:"required,min=1,dive,required"`
	CouponCode    string  `json:"coupon_code" validate:"max=64"`
	Currency      string  `json:"currency" validate:"omitempty,len=3"`
	DeliveryType  string  `json:"delivery_type" validate:"max=32"`
	Notes         string  `json:"notes" validate:"max=2000"`
}

type OrderResponse struct {
	Order          *model.Order `json:"order"`
	PaymentURL     string       `json:"payment_url,omitempty"`
	FormattedTotal string       `json:"formatted_total"`
}

// PaymentSessionFailure is returned alongside a persisted order whose payment
// session could not be opened.
type PaymentSessionFailure struct {
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	Order     *model.Order `json:"order"`
}

type ValidateCouponRequest struct {
	Code     string          `json:"code" validate:"required,max=64"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
}

type VerifyPaymentRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

type ProductRequest struct {
	Name         string              `json:"name" validate:"required,max=255"`
	Category     string              `json:"category" validate:"max=128"`
	CategorySlug string              `json:"category_slug" validate:"max=128"`
	Slug         string              `json:"slug" validate:"required,max=191"`
	Pricing      []model.PricingTier `json:"pricing" validate:"required,min=1"`
	Status       string              `json:"status" validate:"omitempty,oneof=active inactive"`
	StockOut     bool                `json:"stock_out"`
}

func (r *ProductRequest) ToModel() *model.Product {
	return &model.Product{
		Name:         r.Name,
		Category:     r.Category,
		CategorySlug: r.CategorySlug,
		Slug:         r.Slug,
		Pricing:      r.Pricing,
		Status:       model.ProductStatus(r.Status),
		StockOut:     r.StockOut,
	}
}

type CouponRequest struct {
	Code            string           `json:"code" validate:"required,max=64"`
	DiscountType    string           `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue   decimal.Decimal  `json:"discount_value"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount"`
	UsageLimit      *int             `json:"usage_limit" validate:"omitempty,min=0"`
	ValidFrom       *time.Time       `json:"valid_from"`
	ValidUntil      *time.Time       `json:"valid_until"`
}

func (r *CouponRequest) ToModel() *model.Coupon {
	c := &model.Coupon{
		Code:          r.Code,
		DiscountType:  model.DiscountType(r.DiscountType),
		DiscountValue: r.DiscountValue,
		UsageLimit:    r.UsageLimit,
		ValidFrom:     r.ValidFrom,
		ValidUntil:    r.ValidUntil,
	}
	if r.MinimumAmount != nil {
		c.MinimumAmount = decimal.NewNullDecimal(*r.MinimumAmount)
	}
	if r.MaximumDiscount != nil {
		c.MaximumDiscount = decimal.NewNullDecimal(*r.MaximumDiscount)
	}
	return c
}

type HotDealRequest struct {
	ProductID   string  `json:"product_id" validate:"required"`
	CustomTitle *string `json:"custom_title" validate:"omitempty,max=255"`
	CustomImage *string `json:"custom_image" validate:"omitempty,max=512"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   int     `json:"sort_order"`
}

func (r *HotDealRequest) ToModel() *model.HotDeal {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &model.HotDeal{
		ProductID:   r.ProductID,
		CustomTitle: r.CustomTitle,
		CustomImage: r.CustomImage,
		IsActive:    active,
		SortOrder:   r.SortOrder,
	}
}

type SortOrderUpdate struct {
	ID        string `json:"id" validate:"required"`
	SortOrder int    `json:"sort_order"`
}

type ReorderHotDealsRequest struct {
	Deals []*SortOrderUpdate `json:"deals" validate:"required,min=1,dive,required"`
}
