package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"platform/internal/auth"
	"platform/internal/cache"
	"platform/internal/model"
	"platform/internal/repository"
)

type memCatalogStore struct {
	repository.CatalogRepository
	items map[uuid.UUID]*model.CatalogItem
}

func (r *memCatalogStore) FindByID(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *memCatalogStore) Update(ctx context.Context, item *model.CatalogItem) error {
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *memCatalogStore) List(ctx context.Context, filter auth.ScopeFilter, page, limit int, search string) ([]model.CatalogItem, int64, error) {
	var out []model.CatalogItem
	for _, item := range r.items {
		if filter.Kind == auth.ScopeLocation && item.LocationID != filter.LocationID {
			continue
		}
		out = append(out, *item)
	}
	return out, int64(len(out)), nil
}

// A write must drop the cached reads before the response goes out, so the
// next list and item lookups see the new row rather than a stale entry.
func TestCatalogWriteThenReadSeesFreshData(t *testing.T) {
	loc := uuid.New()
	region := uuid.New()
	itemID := uuid.New()

	store := &memCatalogStore{items: map[uuid.UUID]*model.CatalogItem{
		itemID: {
			ID:         itemID,
			LocationID: loc,
			SKU:        "SKU-1",
			Name:       "Widget",
			Price:      decimal.RequireFromString("9.99"),
			Available:  true,
		},
	}}

	svc := NewCatalogService(
		auth.NewGate(nil),
		store,
		&nopAuditRepo{},
		passthroughTxManager{},
		cache.New(cache.NewMemoryStore()),
		nil, // no hub
	)

	manager := auth.Principal{
		ID: uuid.New(), Role: model.RoleManager,
		LocationID: &loc, RegionID: &region, Active: true,
	}
	ctx := context.Background()

	// Prime the cached list and item reads.
	items, total, err := svc.ListItems(ctx, manager, nil, 1, 20, "")
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, "9.99", items[0].Price)

	got, err := svc.GetItem(ctx, manager, itemID.String())
	require.NoError(t, err)
	assert.Equal(t, "9.99", got.Price)

	_, err = svc.UpdateItem(ctx, manager, itemID.String(), UpdateCatalogItemRequest{Price: "12.50"})
	require.NoError(t, err)

	// Both reads were cached; the write must have evicted them.
	items, _, err = svc.ListItems(ctx, manager, nil, 1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, "12.50", items[0].Price)

	got, err = svc.GetItem(ctx, manager, itemID.String())
	require.NoError(t, err)
	assert.Equal(t, "12.50", got.Price)
}
