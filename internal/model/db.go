package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

type PricingTier struct {
	Duration string          `json:"duration"`
	Price    decimal.Decimal `json:"price"` // base currency
}

type Product struct {
	ID           string        `gorm:"primaryKey;size:36;not null" json:"id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	Category     string        `gorm:"size:128" json:"category"`
	CategorySlug string        `gorm:"size:128;index" json:"category_slug"`
	Slug         string        `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	Pricing      []PricingTier `gorm:"serializer:json" json:"pricing"`
	Status       ProductStatus `gorm:"size:16;index;not null" json:"status"`
	StockOut     bool          `gorm:"not null;default:false" json:"stock_out"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID              string              `gorm:"primaryKey;size:36;not null" json:"id"`
	Code            string              `gorm:"size:64;uniqueIndex;not null" json:"code"` // upper-case
	DiscountType    DiscountType        `gorm:"size:16;not null" json:"discount_type"`
	DiscountValue   decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"discount_value"`
	MinimumAmount   decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"minimum_amount"`
	MaximumDiscount decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"maximum_discount"`
	UsageLimit      *int                `json:"usage_limit"`
	CurrentUsage    int                 `gorm:"not null;default:0" json:"current_usage"`
	ValidFrom       *time.Time          `json:"valid_from"`
	ValidUntil      *time.Time          `json:"valid_until"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type OrderStatus string

const (
	OrderCreated         OrderStatus = "created"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderCompleted       OrderStatus = "completed"
	OrderFailed          OrderStatus = "failed"
	OrderCancelled       OrderStatus = "cancelled"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Order struct {
	ID             string              `gorm:"primaryKey;size:36;not null" json:"id"`
	OrderNumber    string              `gorm:"size:40;uniqueIndex;not null" json:"order_number"`
	IdempotencyKey *string             `gorm:"size:128;uniqueIndex" json:"-"`
	CustomerID     *string             `gorm:"size:36;index" json:"customer_id,omitempty"`
	CustomerName   string              `gorm:"size:255;not null" json:"customer_name"`
	CustomerEmail  string              `gorm:"size:255;index;not null" json:"customer_email"`
	CustomerPhone  string              `gorm:"size:32" json:"customer_phone"`
	Status         OrderStatus         `gorm:"size:32;index;not null" json:"status"`
	PaymentStatus  PaymentStatus       `gorm:"size:16;index;not null" json:"payment_status"`
	Subtotal       decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"subtotal"`
	CouponCode     *string             `gorm:"size:64" json:"coupon_code"`
	CouponDiscount decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"coupon_discount"`
	Total          decimal.Decimal     `gorm:"type:decimal(20,2);not null" json:"total"`
	Currency       string              `gorm:"size:8;not null" json:"currency"`
	DeliveryType   string              `gorm:"size:32" json:"delivery_type"`
	PaymentID      *string             `gorm:"size:128;index" json:"payment_id"` // provider transaction id
	PaymentURL     string              `gorm:"size:512" json:"payment_url,omitempty"`
	PaymentMethod  string              `gorm:"size:64" json:"payment_method,omitempty"`
	Notes          string              `gorm:"type:text" json:"notes"`
	Items          []*OrderItem        `gorm:"foreignKey:OrderID" json:"items"`
	CompletedAt    *time.Time          `json:"completed_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	OrderID     string          `gorm:"size:36;index;not null" json:"-"`
	Position    int             `gorm:"not null" json:"-"`
	ProductID   string          `gorm:"size:36;index;not null" json:"product_id"`
	ProductName string          `gorm:"size:255;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	Duration    string          `gorm:"size:64" json:"duration"`
}

// HotDeal references a product weakly; a deal whose product is gone is
// dropped at read time.
type HotDeal struct {
	ID          string    `gorm:"primaryKey;size:36;not null" json:"id"`
	ProductID   string    `gorm:"size:36;index;not null" json:"product_id"`
	CustomTitle *string   `gorm:"size:255" json:"custom_title"`
	CustomImage *string   `gorm:"size:512" json:"custom_image"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	SortOrder   int       `gorm:"not null;default:0;index" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type WebhookEvent struct {
	EventID       string `gorm:"primaryKey;size:191;not null"` // transaction_id:status
	OrderNumber   string `gorm:"size:40;index;not null"`
	TransactionID string `gorm:"size:128;index;not null"`
	Status        string `gorm:"size:32;not null"`
	ProcessedAt   time.Time
	CreatedAt     time.Time
}

func AllModels() []interface{} {
	return []interface{}{
		&Product{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&HotDeal{},
		&WebhookEvent{},
	}
}
