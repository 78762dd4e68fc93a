package repository

import (
	"context"
	"storefront-checkout/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	CrudRepository[model.Product]
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	ListActive(ctx context.Context) ([]*model.Product, error)
}

type productRepoImpl struct {
	*crudRepoImpl[model.Product]
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		crudRepoImpl: newCrudRepository[model.Product](db, "product"),
	}
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	if len(productIDs) == 0 {
		return products, nil
	}

	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) ListActive(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ProductActive).
		Order("name ASC").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
