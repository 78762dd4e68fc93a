package service

import (
	"context"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/repository"
	"strings"

	"github.com/google/uuid"
)

type ProductService interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	UpdateProduct(ctx context.Context, id string, product *model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)
	ListActiveProducts(ctx context.Context) ([]*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type productServiceImpl struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productServiceImpl{
		productRepo: productRepo,
	}
}

func (s *productServiceImpl) CreateProduct(ctx context.Context, product *model.Product) error {
	if err := normalizeProduct(product); err != nil {
		return err
	}
	product.ID = uuid.NewString()

	return s.productRepo.Create(ctx, nil, product)
}

func (s *productServiceImpl) UpdateProduct(ctx context.Context, id string, product *model.Product) (*model.Product, error) {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeProduct(product); err != nil {
		return nil, err
	}

	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	if err := s.productRepo.Update(ctx, nil, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *productServiceImpl) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

func (s *productServiceImpl) ListProducts(ctx context.Context) ([]*model.Product, error) {
	return s.productRepo.List(ctx)
}

func (s *productServiceImpl) ListActiveProducts(ctx context.Context) ([]*model.Product, error) {
	return s.productRepo.ListActive(ctx)
}

func (s *productServiceImpl) DeleteProduct(ctx context.Context, id string) error {
	return s.productRepo.Delete(ctx, nil, id)
}

func normalizeProduct(p *model.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	if p.Name == "" {
		return apperror.Validation("name", "is required")
	}
	if p.Slug == "" {
		return apperror.Validation("slug", "is required")
	}

	switch p.Status {
	case "":
		p.Status = model.ProductActive
	case model.ProductActive, model.ProductInactive:
	default:
		return apperror.Validation("status", "must be active or inactive")
	}

	for _, tier := range p.Pricing {
		if tier.Price.IsNegative() {
			return apperror.Validation("pricing", "price must not be negative")
		}
	}

	return nil
}
