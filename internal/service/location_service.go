package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"platform/internal/apperr"
	"platform/internal/auth"
	"platform/internal/cache"
	"platform/internal/model"
	"platform/internal/repository"
)

// DTOs
type CreateLocationRequest struct {
	Name     string `json:"name" binding:"required"`
	RegionID string `json:"region_id" binding:"required"`
}

type CreateRegionRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateLocationRequest struct {
	Name     string `json:"name"`
	RegionID string `json:"region_id"`
	Active   *bool  `json:"active"`
}

type LocationResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RegionID string `json:"region_id"`
	Active   bool   `json:"active"`
}

type LocationService interface {
	List(ctx context.Context, p auth.Principal, requested *auth.ScopeFilter, page, limit int) ([]LocationResponse, int64, error)
	Get(ctx context.Context, p auth.Principal, id string) (*LocationResponse, error)
	Create(ctx context.Context, p auth.Principal, req CreateLocationRequest) (*LocationResponse, error)
	Update(ctx context.Context, p auth.Principal, id string, req UpdateLocationRequest) (*LocationResponse, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
	CreateRegion(ctx context.Context, p auth.Principal, req CreateRegionRequest) (*model.Region, error)
	ListRegions(ctx context.Context, p auth.Principal) ([]model.Region, error)
}

type locationService struct {
	gate      *auth.Gate
	repo      repository.LocationRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	cache     *cache.Cache
}

func NewLocationService(
	gate *auth.Gate,
	repo repository.LocationRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	c *cache.Cache,
) LocationService {
	return &locationService{
		gate:      gate,
		repo:      repo,
		auditRepo: auditRepo,
		txManager: txManager,
		cache:     c,
	}
}

func mapLocation(loc *model.Location) *LocationResponse {
	return &LocationResponse{
		ID:       loc.ID.String(),
		Name:     loc.Name,
		RegionID: loc.RegionID.String(),
		Active:   loc.Active,
	}
}

func (s *locationService) List(ctx context.Context, p auth.Principal, requested *auth.ScopeFilter, page, limit int) ([]LocationResponse, int64, error) {
	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindLocation, requested)
	if err != nil {
		return nil, 0, err
	}

	key := cache.Key(auth.KindLocation, scope, "list", strconv.Itoa(page), strconv.Itoa(limit))

	var payload struct {
		Locations []LocationResponse `json:"locations"`
		Total     int64              `json:"total"`
	}
	err = s.cache.Fetch(ctx, key, cache.CategoryLocation, &payload, func(ctx context.Context) (interface{}, error) {
		locations, total, err := s.repo.List(ctx, scope, page, limit)
		if err != nil {
			return nil, err
		}
		out := make([]LocationResponse, 0, len(locations))
		for i := range locations {
			out = append(out, *mapLocation(&locations[i]))
		}
		return map[string]interface{}{"locations": out, "total": total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return payload.Locations, payload.Total, nil
}

func (s *locationService) Get(ctx context.Context, p auth.Principal, id string) (*LocationResponse, error) {
	locID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid location id")
	}

	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindLocation, nil)
	if err != nil {
		return nil, err
	}
	if scope.Kind == auth.ScopeLocation && locID != scope.LocationID {
		return nil, apperr.Deniedf("location %s outside scope", locID)
	}

	loc, err := s.repo.FindByID(ctx, locID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("location %s not found", locID)
		}
		return nil, err
	}
	return mapLocation(loc), nil
}

func (s *locationService) Create(ctx context.Context, p auth.Principal, req CreateLocationRequest) (*LocationResponse, error) {
	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindLocation, auth.ActionCreate, "", nil); err != nil {
		return nil, err
	}

	regionID, err := uuid.Parse(req.RegionID)
	if err != nil {
		return nil, apperr.Invalidf("invalid region_id")
	}

	loc := model.Location{Name: req.Name, RegionID: regionID, Active: true}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &loc); err != nil {
			return fmt.Errorf("failed to create location: %w", err)
		}
		return s.writeAudit(txCtx, p, model.ActionCreateLocation, loc.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(loc.ID)
	return mapLocation(&loc), nil
}

func (s *locationService) Update(ctx context.Context, p auth.Principal, id string, req UpdateLocationRequest) (*LocationResponse, error) {
	locID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid location id")
	}

	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindLocation, auth.ActionUpdate, locID.String(), nil); err != nil {
		return nil, err
	}

	loc, err := s.repo.FindByID(ctx, locID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("location %s not found", locID)
		}
		return nil, err
	}

	if req.Name != "" {
		loc.Name = req.Name
	}
	if req.RegionID != "" {
		regionID, err := uuid.Parse(req.RegionID)
		if err != nil {
			return nil, apperr.Invalidf("invalid region_id")
		}
		loc.RegionID = regionID
	}
	if req.Active != nil {
		loc.Active = *req.Active
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, loc); err != nil {
			return fmt.Errorf("failed to update location: %w", err)
		}
		return s.writeAudit(txCtx, p, model.ActionUpdateLocation, loc.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(loc.ID)
	return mapLocation(loc), nil
}

func (s *locationService) Delete(ctx context.Context, p auth.Principal, id string) error {
	locID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Invalidf("invalid location id")
	}

	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindLocation, auth.ActionDelete, locID.String(), nil); err != nil {
		return err
	}

	if _, err := s.repo.FindByID(ctx, locID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Deniedf("location %s not found", locID)
		}
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, locID); err != nil {
			return fmt.Errorf("failed to delete location: %w", err)
		}
		return s.writeAudit(txCtx, p, model.ActionDeleteLocation, locID, nil)
	})
	if err != nil {
		return err
	}

	s.invalidate(locID)
	return nil
}

// CreateRegion adds a region to the reference data set. Writes on
// reference data are admin-only.
func (s *locationService) CreateRegion(ctx context.Context, p auth.Principal, req CreateRegionRequest) (*model.Region, error) {
	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindReference, auth.ActionCreate, "", nil); err != nil {
		return nil, err
	}

	region := model.Region{Name: req.Name}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateRegion(txCtx, &region); err != nil {
			return fmt.Errorf("failed to create region: %w", err)
		}
		return s.writeRegionAudit(txCtx, p, region.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(string(auth.KindReference) + ":*")
	return &region, nil
}

// ListRegions serves static reference data with the long TTL band.
func (s *locationService) ListRegions(ctx context.Context, p auth.Principal) ([]model.Region, error) {
	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindReference, nil)
	if err != nil {
		return nil, err
	}

	key := cache.Key(auth.KindReference, scope, "regions")

	var regions []model.Region
	err = s.cache.Fetch(ctx, key, cache.CategoryReference, &regions, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListRegions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return regions, nil
}

func (s *locationService) writeAudit(ctx context.Context, p auth.Principal, action string, locID uuid.UUID, payload interface{}) error {
	details, _ := json.Marshal(payload)
	uid := p.ID
	entry := &model.AuditLog{
		UserID:       &uid,
		Action:       action,
		ResourceKind: string(auth.KindLocation),
		ResourceID:   locID.String(),
		Decision:     model.DecisionAllowed,
		Details:      string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *locationService) writeRegionAudit(ctx context.Context, p auth.Principal, regionID uuid.UUID, payload interface{}) error {
	details, _ := json.Marshal(payload)
	uid := p.ID
	entry := &model.AuditLog{
		UserID:       &uid,
		Action:       model.ActionCreateRegion,
		ResourceKind: string(auth.KindReference),
		ResourceID:   regionID.String(),
		Decision:     model.DecisionAllowed,
		Details:      string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// invalidate drops every location-metadata key that could name this row:
// its own scoped entries, region lists, and the admin-wide lists.
func (s *locationService) invalidate(locID uuid.UUID) {
	s.cache.Invalidate(
		cache.Key(auth.KindLocation, auth.LocationScope(locID))+":*",
		cache.Key(auth.KindLocation, auth.Unrestricted())+":*",
		string(auth.KindLocation)+":region:*",
	)
}
