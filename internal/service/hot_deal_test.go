package service

import (
	"context"
	"testing"

	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotDealReorder_RollsBackOnUnknownID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	svc := NewHotDealService(f.db, f.hotDeals, f.products)

	p := f.addProduct(t, "Netflix", "10")
	a := &model.HotDeal{ProductID: p.ID, IsActive: true, SortOrder: 0}
	b := &model.HotDeal{ProductID: p.ID, IsActive: true, SortOrder: 1}
	require.NoError(t, svc.Create(ctx, a))
	require.NoError(t, svc.Create(ctx, b))

	_, err := svc.Reorder(ctx, []SortUpdate{
		{ID: a.ID, SortOrder: 5},
		{ID: "missing", SortOrder: 0},
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	deals, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, a.ID, deals[0].ID)
	assert.Equal(t, 0, deals[0].SortOrder)

	deals, err = svc.Reorder(ctx, []SortUpdate{
		{ID: a.ID, SortOrder: 2},
		{ID: b.ID, SortOrder: 1},
	})
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, b.ID, deals[0].ID)
	assert.Equal(t, a.ID, deals[1].ID)
	assert.Equal(t, 2, deals[1].SortOrder)
}

func TestHotDealReorder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	svc := NewHotDealService(f.db, f.hotDeals, f.products)

	_, err := svc.Reorder(ctx, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Reorder(ctx, []SortUpdate{{ID: "x", SortOrder: 1}, {ID: "x", SortOrder: 2}})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestHotDealList_FiltersOrphansAndInactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	svc := NewHotDealService(f.db, f.hotDeals, f.products)

	kept := f.addProduct(t, "Spotify", "5")
	gone := f.addProduct(t, "Hulu", "6")
	hidden := f.addProduct(t, "HBO", "7")

	title := "Spotify at half price"
	require.NoError(t, svc.Create(ctx, &model.HotDeal{ProductID: kept.ID, IsActive: true, CustomTitle: &title}))
	require.NoError(t, svc.Create(ctx, &model.HotDeal{ProductID: gone.ID, IsActive: true, SortOrder: 1}))
	require.NoError(t, svc.Create(ctx, &model.HotDeal{ProductID: hidden.ID, IsActive: true, SortOrder: 2}))
	require.NoError(t, svc.Create(ctx, &model.HotDeal{ProductID: kept.ID, IsActive: false, SortOrder: 3}))

	require.NoError(t, f.products.Delete(ctx, nil, gone.ID))
	hidden.Status = model.ProductInactive
	require.NoError(t, f.products.Update(ctx, nil, hidden))

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, title, views[0].Title)
	assert.Equal(t, kept.ID, views[0].Product.ID)

	assert.ErrorIs(t, svc.Create(ctx, &model.HotDeal{ProductID: "nope"}), apperror.ErrNotFound)
}

func TestProductService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	svc := NewProductService(f.products)

	p := &model.Product{Name: " Netflix ", Slug: "Netflix-Basic"}
	require.NoError(t, svc.CreateProduct(ctx, p))
	assert.Equal(t, "netflix-basic", p.Slug)
	assert.Equal(t, model.ProductActive, p.Status)

	assert.ErrorIs(t, svc.CreateProduct(ctx, &model.Product{Name: "Other", Slug: "netflix-basic"}), apperror.ErrConflict)
	assert.ErrorIs(t, svc.CreateProduct(ctx, &model.Product{Slug: "x"}), apperror.ErrValidation)

	updated, err := svc.UpdateProduct(ctx, p.ID, &model.Product{Name: "Netflix Basic", Slug: "netflix-basic", Status: model.ProductInactive})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)

	active, err := svc.ListActiveProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.UpdateProduct(ctx, "missing", &model.Product{Name: "x", Slug: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	_, err = svc.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
