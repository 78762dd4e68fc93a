package repository

import (
	"context"
	"errors"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"strings"

	"gorm.io/gorm"
)

type CouponRepository interface {
	CrudRepository[model.Coupon]
	FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Coupon, error)
	// IncrementUsage consumes one use unless the usage limit has been reached.
	// It reports false when no use was left.
	IncrementUsage(ctx context.Context, tx *gorm.DB, couponID string) (bool, error)
}

type couponRepoImpl struct {
	*crudRepoImpl[model.Coupon]
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{
		crudRepoImpl: newCrudRepository[model.Coupon](db, "coupon"),
	}
}

func (r *couponRepoImpl) FindByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.conn(ctx, tx).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("coupon %s", code)
		}
		return nil, err
	}

	return &coupon, nil
}

func (r *couponRepoImpl) IncrementUsage(ctx context.Context, tx *gorm.DB, couponID string) (bool, error) {
	result := r.conn(ctx, tx).Model(&model.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR current_usage < usage_limit)", couponID).
		UpdateColumn("current_usage", gorm.Expr("current_usage + ?", 1))

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
