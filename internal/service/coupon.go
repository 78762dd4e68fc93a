package service

import (
	"context"
	"errors"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReasonNotFound       = "not_found"
	ReasonExpired        = "expired_or_not_started"
	ReasonUsageExhausted = "usage_exhausted"
	ReasonBelowMinimum   = "below_minimum"
)

type CouponValidation struct {
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Reason   string          `json:"reason,omitempty"`
}

type CouponService interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, currency string) (*CouponValidation, error)
	// Redeem re-checks the coupon inside tx and consumes one use. subtotal and
	// the returned discount are in the base currency.
	Redeem(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal) (*model.Coupon, decimal.Decimal, error)

	CreateCoupon(ctx context.Context, coupon *model.Coupon) error
	ListCoupons(ctx context.Context) ([]*model.Coupon, error)
	DeleteCoupon(ctx context.Context, id string) error
}

type couponServiceImpl struct {
	couponRepo repository.CouponRepository
	calc       *pricing.Calculator
	now        func() time.Time
}

func NewCouponService(couponRepo repository.CouponRepository, calc *pricing.Calculator) CouponService {
	return &couponServiceImpl{
		couponRepo: couponRepo,
		calc:       calc,
		now:        time.Now,
	}
}

func (s *couponServiceImpl) Validate(ctx context.Context, code string, subtotal decimal.Decimal, currency string) (*CouponValidation, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperror.Validation("code", "is required")
	}
	if subtotal.IsNegative() {
		return nil, apperror.Validation("subtotal", "must not be negative")
	}
	if currency == "" {
		currency = s.calc.BaseCurrency()
	}
	if !s.calc.SupportsCurrency(currency) {
		return nil, apperror.Validation("currency", "unsupported currency "+currency)
	}

	coupon, err := s.couponRepo.FindByCode(ctx, nil, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &CouponValidation{Valid: false, Discount: decimal.Zero, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	baseDiscount, reason := EvaluateCoupon(coupon, s.calc.ToBase(subtotal, currency), s.now())
	if reason != "" {
		return &CouponValidation{Valid: false, Discount: decimal.Zero, Reason: reason}, nil
	}

	discount := pricing.ClampDiscount(s.calc.FromBase(baseDiscount, currency).Round(2), subtotal)
	return &CouponValidation{Valid: true, Discount: discount}, nil
}

func (s *couponServiceImpl) Redeem(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal) (*model.Coupon, decimal.Decimal, error) {
	coupon, err := s.couponRepo.FindByCode(ctx, tx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, decimal.Zero, apperror.Validation("coupon_code", ReasonNotFound)
		}
		return nil, decimal.Zero, err
	}

	discount, reason := EvaluateCoupon(coupon, subtotal, s.now())
	switch reason {
	case "":
	case ReasonUsageExhausted:
		return nil, decimal.Zero, apperror.Conflict("coupon %s: %s", coupon.Code, reason)
	default:
		return nil, decimal.Zero, apperror.Validation("coupon_code", reason)
	}

	ok, err := s.couponRepo.IncrementUsage(ctx, tx, coupon.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !ok {
		return nil, decimal.Zero, apperror.Conflict("coupon %s: %s", coupon.Code, ReasonUsageExhausted)
	}
	coupon.CurrentUsage++

	return coupon, discount, nil
}

// EvaluateCoupon applies the coupon rules to a base-currency subtotal. It
// returns the discount, or a non-empty reason when the coupon does not apply.
func EvaluateCoupon(c *model.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, string) {
	if c.ValidFrom != nil && c.ValidFrom.After(now) {
		return decimal.Zero, ReasonExpired
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return decimal.Zero, ReasonExpired
	}
	if c.UsageLimit != nil && c.CurrentUsage >= *c.UsageLimit {
		return decimal.Zero, ReasonUsageExhausted
	}
	if c.MinimumAmount.Valid && subtotal.LessThan(c.MinimumAmount.Decimal) {
		return decimal.Zero, ReasonBelowMinimum
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case model.DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	default:
		discount = c.DiscountValue
	}

	if c.MaximumDiscount.Valid && discount.GreaterThan(c.MaximumDiscount.Decimal) {
		discount = c.MaximumDiscount.Decimal
	}

	return pricing.ClampDiscount(discount.Round(2), subtotal), ""
}

func (s *couponServiceImpl) CreateCoupon(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" {
		return apperror.Validation("code", "is required")
	}

	switch coupon.DiscountType {
	case model.DiscountPercentage:
		if coupon.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return apperror.Validation("discount_value", "percentage must be at most 100")
		}
	case model.DiscountFixed:
	default:
		return apperror.Validation("discount_type", "must be percentage or fixed")
	}
	if !coupon.DiscountValue.IsPositive() {
		return apperror.Validation("discount_value", "must be positive")
	}
	if coupon.UsageLimit != nil && *coupon.UsageLimit < 0 {
		return apperror.Validation("usage_limit", "must not be negative")
	}
	if coupon.ValidFrom != nil && coupon.ValidUntil != nil && coupon.ValidUntil.Before(*coupon.ValidFrom) {
		return apperror.Validation("valid_until", "must not be before valid_from")
	}

	coupon.ID = uuid.NewString()
	coupon.CurrentUsage = 0

	return s.couponRepo.Create(ctx, nil, coupon)
}

func (s *couponServiceImpl) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	return s.couponRepo.List(ctx)
}

func (s *couponServiceImpl) DeleteCoupon(ctx context.Context, id string) error {
	return s.couponRepo.Delete(ctx, nil, id)
}
