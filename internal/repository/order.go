package repository

import (
	"context"
	"errors"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TerminalUpdate is the outcome written onto an order when its payment settles.
type TerminalUpdate struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	PaymentID     string
	PaymentMethod string
	CompletedAt   time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByOrderNumber(ctx context.Context, tx *gorm.DB, orderNumber string) (*model.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)
	AttachPaymentSession(ctx context.Context, orderNumber, paymentURL string) (bool, error)
	MarkTerminal(ctx context.Context, tx *gorm.DB, orderNumber string, update TerminalUpdate) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	err := r.conn(ctx, tx).Omit(clause.Associations).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("order %s already exists", order.OrderNumber)
	}
	return err
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(&items).Error
}

func (r *orderRepoImpl) FindByOrderNumber(ctx context.Context, tx *gorm.DB, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.conn(ctx, tx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("order_number = ?", orderNumber).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order %s", orderNumber)
		}
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("idempotency_key = ?", key).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order with idempotency key %s", key)
		}
		return nil, err
	}

	return &order, nil
}

// AttachPaymentSession moves a created order to awaiting_payment. It is a
// no-op (false) once the order has a session or has settled.
func (r *orderRepoImpl) AttachPaymentSession(ctx context.Context, orderNumber, paymentURL string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where(`
			order_number = ?
			AND payment_status = ?
			AND status = ?
		`,
			orderNumber,
			model.PaymentPending,
			model.OrderCreated,
		).
		Updates(map[string]interface{}{
			"status":      model.OrderAwaitingPayment,
			"payment_url": paymentURL,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// MarkTerminal is the compare-and-swap guarding the payment status: it only
// matches while payment_status is still pending, so at most one caller ever
// settles an order.
func (r *orderRepoImpl) MarkTerminal(ctx context.Context, tx *gorm.DB, orderNumber string, update TerminalUpdate) (bool, error) {
	values := map[string]interface{}{
		"status":         update.Status,
		"payment_status": update.PaymentStatus,
		"payment_id":     update.PaymentID,
		"updated_at":     time.Now(),
	}
	if update.PaymentMethod != "" {
		values["payment_method"] = update.PaymentMethod
	}
	if update.PaymentStatus == model.PaymentCompleted {
		values["completed_at"] = update.CompletedAt
	}

	result := r.conn(ctx, tx).Model(&model.Order{}).
		Where("order_number = ? AND payment_status = ?", orderNumber, model.PaymentPending).
		Updates(values)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
