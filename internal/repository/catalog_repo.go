package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"platform/internal/auth"
	"platform/internal/model"
)

type CatalogRepository interface {
	Create(ctx context.Context, item *model.CatalogItem) error
	Update(ctx context.Context, item *model.CatalogItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error)
	FindBySKU(ctx context.Context, sku string) (*model.CatalogItem, error)
	List(ctx context.Context, filter auth.ScopeFilter, page, limit int, search string) ([]model.CatalogItem, int64, error)
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) Create(ctx context.Context, item *model.CatalogItem) error {
	return wrapDBErr(GetDB(ctx, r.db).Create(item).Error)
}

func (r *catalogRepository) Update(ctx context.Context, item *model.CatalogItem) error {
	return wrapDBErr(GetDB(ctx, r.db).Save(item).Error)
}

func (r *catalogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return wrapDBErr(GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.CatalogItem{}).Error)
}

func (r *catalogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error) {
	var item model.CatalogItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return &item, nil
}

func (r *catalogRepository) FindBySKU(ctx context.Context, sku string) (*model.CatalogItem, error) {
	var item model.CatalogItem
	if err := GetDB(ctx, r.db).Where("sku = ?", sku).First(&item).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return &item, nil
}

// List returns catalog items inside the resolved scope only. The filter is
// always merged into the predicate; this repository never runs unscoped.
func (r *catalogRepository) List(ctx context.Context, filter auth.ScopeFilter, page, limit int, search string) ([]model.CatalogItem, int64, error) {
	var items []model.CatalogItem
	var total int64

	db := applyScope(GetDB(ctx, r.db).Model(&model.CatalogItem{}), "catalog_items", filter)
	if search != "" {
		db = db.Where("catalog_items.name ILIKE ?", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, wrapDBErr(err)
	}

	offset := (page - 1) * limit
	if err := db.Order("catalog_items.created_at desc").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, wrapDBErr(err)
	}

	return items, total, nil
}

func (r *catalogRepository) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	var rows []model.CatalogItem
	if err := GetDB(ctx, r.db).Select("id, name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrapDBErr(err)
	}

	names := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
