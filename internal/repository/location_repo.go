package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"platform/internal/auth"
	"platform/internal/model"
)

type LocationRepository interface {
	Create(ctx context.Context, location *model.Location) error
	Update(ctx context.Context, location *model.Location) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Location, error)
	List(ctx context.Context, filter auth.ScopeFilter, page, limit int) ([]model.Location, int64, error)
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)

	CreateRegion(ctx context.Context, region *model.Region) error
	ListRegions(ctx context.Context) ([]model.Region, error)
}

type locationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Create(ctx context.Context, location *model.Location) error {
	return wrapDBErr(GetDB(ctx, r.db).Create(location).Error)
}

func (r *locationRepository) Update(ctx context.Context, location *model.Location) error {
	return wrapDBErr(GetDB(ctx, r.db).Save(location).Error)
}

func (r *locationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return wrapDBErr(GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Location{}).Error)
}

func (r *locationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Location, error) {
	var location model.Location
	if err := GetDB(ctx, r.db).First(&location, "id = ?", id).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return &location, nil
}

// List returns locations visible under the resolved scope. Locations scope
// on their own columns rather than the shared location_id predicate.
func (r *locationRepository) List(ctx context.Context, filter auth.ScopeFilter, page, limit int) ([]model.Location, int64, error) {
	var locations []model.Location
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Location{})
	switch filter.Kind {
	case auth.ScopeLocation:
		db = db.Where("id = ?", filter.LocationID)
	case auth.ScopeRegion:
		db = db.Where("region_id = ?", filter.RegionID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, wrapDBErr(err)
	}

	offset := (page - 1) * limit
	if err := db.Order("name asc").Offset(offset).Limit(limit).Find(&locations).Error; err != nil {
		return nil, 0, wrapDBErr(err)
	}

	return locations, total, nil
}

func (r *locationRepository) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	var rows []model.Location
	if err := GetDB(ctx, r.db).Select("id, name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrapDBErr(err)
	}

	names := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

func (r *locationRepository) CreateRegion(ctx context.Context, region *model.Region) error {
	return wrapDBErr(GetDB(ctx, r.db).Create(region).Error)
}

func (r *locationRepository) ListRegions(ctx context.Context) ([]model.Region, error) {
	var regions []model.Region
	if err := GetDB(ctx, r.db).Order("name asc").Find(&regions).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return regions, nil
}
