package repository

import (
	"context"
	"errors"
	"storefront-checkout/internal/apperror"

	"gorm.io/gorm"
)

// CrudRepository is the generic create/read/update/delete data-access
// surface. Write methods accept an optional transaction.
type CrudRepository[T any] interface {
	Create(ctx context.Context, tx *gorm.DB, entity *T) error
	FindByID(ctx context.Context, id string) (*T, error)
	List(ctx context.Context) ([]*T, error)
	Update(ctx context.Context, tx *gorm.DB, entity *T) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
}

type crudRepoImpl[T any] struct {
	db   *gorm.DB
	name string
}

func newCrudRepository[T any](db *gorm.DB, name string) *crudRepoImpl[T] {
	return &crudRepoImpl[T]{
		db:   db,
		name: name,
	}
}

func (r *crudRepoImpl[T]) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *crudRepoImpl[T]) Create(ctx context.Context, tx *gorm.DB, entity *T) error {
	err := r.conn(ctx, tx).Create(entity).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("%s already exists", r.name)
	}
	return err
}

func (r *crudRepoImpl[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entity).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("%s %s", r.name, id)
		}
		return nil, err
	}

	return &entity, nil
}

func (r *crudRepoImpl[T]) List(ctx context.Context) ([]*T, error) {
	var entities []*T
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&entities).Error

	if err != nil {
		return nil, err
	}

	return entities, nil
}

func (r *crudRepoImpl[T]) Update(ctx context.Context, tx *gorm.DB, entity *T) error {
	result := r.conn(ctx, tx).Save(entity)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("%s already exists", r.name)
	}
	return result.Error
}

func (r *crudRepoImpl[T]) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	var entity T
	result := r.conn(ctx, tx).
		Where("id = ?", id).
		Delete(&entity)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("%s %s", r.name, id)
	}

	return nil
}
