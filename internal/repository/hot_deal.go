package repository

import (
	"context"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

type HotDealRepository interface {
	CrudRepository[model.HotDeal]
	ListOrdered(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*model.HotDeal, error)
	UpdateSortOrder(ctx context.Context, tx *gorm.DB, id string, sortOrder int) error
}

type hotDealRepoImpl struct {
	*crudRepoImpl[model.HotDeal]
}

func NewHotDealRepository(db *gorm.DB) HotDealRepository {
	return &hotDealRepoImpl{
		crudRepoImpl: newCrudRepository[model.HotDeal](db, "hot deal"),
	}
}

// ListOrdered returns deals by sort_order ascending, newest first on ties.
func (r *hotDealRepoImpl) ListOrdered(ctx context.Context, tx *gorm.DB, activeOnly bool) ([]*model.HotDeal, error) {
	var deals []*model.HotDeal
	query := r.conn(ctx, tx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	err := query.
		Order("sort_order ASC").
		Order("created_at DESC").
		Order("id ASC").
		Find(&deals).Error

	if err != nil {
		return nil, err
	}

	return deals, nil
}

func (r *hotDealRepoImpl) UpdateSortOrder(ctx context.Context, tx *gorm.DB, id string, sortOrder int) error {
	result := r.conn(ctx, tx).Model(&model.HotDeal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sort_order": sortOrder,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("hot deal %s", id)
	}

	return nil
}
