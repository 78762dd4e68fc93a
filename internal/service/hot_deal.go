package service

import (
	"context"
	"fmt"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SortUpdate struct {
	ID        string
	SortOrder int
}

// HotDealView is a deal joined with its product for the storefront.
type HotDealView struct {
	*model.HotDeal
	Title   string         `json:"title"`
	Product *model.Product `json:"product"`
}

type HotDealService interface {
	List(ctx context.Context) ([]*HotDealView, error)
	ListAll(ctx context.Context) ([]*model.HotDeal, error)
	Create(ctx context.Context, deal *model.HotDeal) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, updates []SortUpdate) ([]*model.HotDeal, error)
}

type hotDealServiceImpl struct {
	db          *gorm.DB
	hotDealRepo repository.HotDealRepository
	productRepo repository.ProductRepository
}

func NewHotDealService(db *gorm.DB, hotDealRepo repository.HotDealRepository, productRepo repository.ProductRepository) HotDealService {
	return &hotDealServiceImpl{
		db:          db,
		hotDealRepo: hotDealRepo,
		productRepo: productRepo,
	}
}

// List returns active deals whose product still exists and is active.
func (s *hotDealServiceImpl) List(ctx context.Context) ([]*HotDealView, error) {
	deals, err := s.hotDealRepo.ListOrdered(ctx, nil, true)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(deals))
	for _, d := range deals {
		ids = append(ids, d.ProductID)
	}
	products, err := s.productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	views := make([]*HotDealView, 0, len(deals))
	for _, d := range deals {
		product, ok := byID[d.ProductID]
		if !ok || product.Status != model.ProductActive {
			continue
		}
		title := product.Name
		if d.CustomTitle != nil && *d.CustomTitle != "" {
			title = *d.CustomTitle
		}
		views = append(views, &HotDealView{HotDeal: d, Title: title, Product: product})
	}

	return views, nil
}

func (s *hotDealServiceImpl) ListAll(ctx context.Context) ([]*model.HotDeal, error) {
	return s.hotDealRepo.ListOrdered(ctx, nil, false)
}

func (s *hotDealServiceImpl) Create(ctx context.Context, deal *model.HotDeal) error {
	if deal.ProductID == "" {
		return apperror.Validation("product_id", "is required")
	}
	if _, err := s.productRepo.FindByID(ctx, deal.ProductID); err != nil {
		return err
	}

	deal.ID = uuid.NewString()
	return s.hotDealRepo.Create(ctx, nil, deal)
}

func (s *hotDealServiceImpl) Delete(ctx context.Context, id string) error {
	return s.hotDealRepo.Delete(ctx, nil, id)
}

// Reorder applies every sort order in one transaction; an unknown id rolls
// the whole batch back.
func (s *hotDealServiceImpl) Reorder(ctx context.Context, updates []SortUpdate) ([]*model.HotDeal, error) {
	if len(updates) == 0 {
		return nil, apperror.Validation("deals", "at least one update is required")
	}
	seen := make(map[string]struct{}, len(updates))
	for i, u := range updates {
		if u.ID == "" {
			return nil, apperror.Validation(fmt.Sprintf("deals[%d].id", i), "is required")
		}
		if _, dup := seen[u.ID]; dup {
			return nil, apperror.Validation(fmt.Sprintf("deals[%d].id", i), "duplicate id "+u.ID)
		}
		seen[u.ID] = struct{}{}
	}

	var deals []*model.HotDeal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := s.hotDealRepo.UpdateSortOrder(ctx, tx, u.ID, u.SortOrder); err != nil {
				return err
			}
		}

		var err error
		deals, err = s.hotDealRepo.ListOrdered(ctx, tx, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithField("updates", len(updates)).Info("hot deals reordered")
	return deals, nil
}
