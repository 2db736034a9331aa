package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"platform/internal/apperr"
	"platform/internal/auth"
	"platform/internal/cache"
	"platform/internal/model"
	"platform/internal/repository"
	ws "platform/internal/websocket"
)

// DTOs
type CreateCatalogItemRequest struct {
	SKU        string `json:"sku" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Price      string `json:"price" binding:"required"`
	LocationID string `json:"location_id"` // required for admins, ignored for managers
	Available  *bool  `json:"available"`
}

type UpdateCatalogItemRequest struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Available *bool  `json:"available"`
}

type CatalogItemResponse struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	Available  bool   `json:"available"`
}

type CatalogService interface {
	ListItems(ctx context.Context, p auth.Principal, requested *auth.ScopeFilter, page, limit int, search string) ([]CatalogItemResponse, int64, error)
	GetItem(ctx context.Context, p auth.Principal, id string) (*CatalogItemResponse, error)
	CreateItem(ctx context.Context, p auth.Principal, req CreateCatalogItemRequest) (*CatalogItemResponse, error)
	UpdateItem(ctx context.Context, p auth.Principal, id string, req UpdateCatalogItemRequest) (*CatalogItemResponse, error)
	DeleteItem(ctx context.Context, p auth.Principal, id string) error
}

type catalogService struct {
	gate      *auth.Gate
	repo      repository.CatalogRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	cache     *cache.Cache
	hub       *ws.Hub
}

func NewCatalogService(
	gate *auth.Gate,
	repo repository.CatalogRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	c *cache.Cache,
	hub *ws.Hub,
) CatalogService {
	return &catalogService{
		gate:      gate,
		repo:      repo,
		auditRepo: auditRepo,
		txManager: txManager,
		cache:     c,
		hub:       hub,
	}
}

func mapCatalogItem(item *model.CatalogItem) *CatalogItemResponse {
	return &CatalogItemResponse{
		ID:         item.ID.String(),
		LocationID: item.LocationID.String(),
		SKU:        item.SKU,
		Name:       item.Name,
		Price:      item.Price.StringFixed(2),
		Available:  item.Available,
	}
}

func (s *catalogService) ListItems(ctx context.Context, p auth.Principal, requested *auth.ScopeFilter, page, limit int, search string) ([]CatalogItemResponse, int64, error) {
	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindCatalogItem, requested)
	if err != nil {
		return nil, 0, err
	}

	key := cache.Key(auth.KindCatalogItem, scope, "list", strconv.Itoa(page), strconv.Itoa(limit), search)

	var payload struct {
		Items []CatalogItemResponse `json:"items"`
		Total int64                 `json:"total"`
	}
	err = s.cache.Fetch(ctx, key, cache.CategoryCatalog, &payload, func(ctx context.Context) (interface{}, error) {
		items, total, err := s.repo.List(ctx, scope, page, limit, search)
		if err != nil {
			return nil, err
		}
		out := make([]CatalogItemResponse, 0, len(items))
		for i := range items {
			out = append(out, *mapCatalogItem(&items[i]))
		}
		return map[string]interface{}{"items": out, "total": total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return payload.Items, payload.Total, nil
}

func (s *catalogService) GetItem(ctx context.Context, p auth.Principal, id string) (*CatalogItemResponse, error) {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid catalog item id")
	}

	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindCatalogItem, nil)
	if err != nil {
		return nil, err
	}

	key := cache.Key(auth.KindCatalogItem, scope, "item", itemID.String())

	var out CatalogItemResponse
	err = s.cache.Fetch(ctx, key, cache.CategoryCatalog, &out, func(ctx context.Context) (interface{}, error) {
		item, err := s.repo.FindByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Missing and out-of-scope look identical to the caller.
				return nil, apperr.Deniedf("catalog item %s not found", itemID)
			}
			return nil, err
		}
		if scope.Kind == auth.ScopeLocation && item.LocationID != scope.LocationID {
			return nil, apperr.Deniedf("catalog item %s outside scope", itemID)
		}
		return mapCatalogItem(item), nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *catalogService) CreateItem(ctx context.Context, p auth.Principal, req CreateCatalogItemRequest) (*CatalogItemResponse, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return nil, apperr.Invalidf("price must be a non-negative decimal")
	}

	target, err := s.targetLocation(p, req.LocationID)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.AuthorizeCreate(ctx, p, auth.KindCatalogItem, target); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindBySKU(ctx, req.SKU); err == nil {
		return nil, apperr.Invalidf("sku %s already exists", req.SKU)
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	item := model.CatalogItem{
		LocationID: target,
		SKU:        req.SKU,
		Name:       req.Name,
		Price:      price,
		Available:  available,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &item); err != nil {
			return fmt.Errorf("failed to create catalog item: %w", err)
		}
		return s.writeAudit(txCtx, p, model.ActionCreateCatalogItem, &item, req)
	})
	if err != nil {
		return nil, err
	}

	// Invalidate before responding so a follow-up read sees the new row.
	s.invalidateCatalog(item.LocationID, item.ID)
	s.broadcast("catalog.created", &item)
	return mapCatalogItem(&item), nil
}

func (s *catalogService) UpdateItem(ctx context.Context, p auth.Principal, id string, req UpdateCatalogItemRequest) (*CatalogItemResponse, error) {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid catalog item id")
	}

	// Ownership is always verified against the authoritative row, never a
	// cached read.
	item, rowLocation, err := s.loadForWrite(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindCatalogItem, auth.ActionUpdate, itemID.String(), rowLocation); err != nil {
		return nil, err
	}
	if item == nil {
		// Unrestricted scope skips the ownership check; the row still has
		// to exist, and the answer stays shaped like every other denial.
		return nil, apperr.Deniedf("catalog item %s not found", itemID)
	}

	if req.SKU != "" {
		item.SKU = req.SKU
	}
	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Price != "" {
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			return nil, apperr.Invalidf("price must be a non-negative decimal")
		}
		item.Price = price
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, item); err != nil {
			return fmt.Errorf("failed to update catalog item: %w", err)
		}
		return s.writeAudit(txCtx, p, model.ActionUpdateCatalogItem, item, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCatalog(item.LocationID, item.ID)
	s.broadcast("catalog.updated", item)
	return mapCatalogItem(item), nil
}

func (s *catalogService) DeleteItem(ctx context.Context, p auth.Principal, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Invalidf("invalid catalog item id")
	}

	item, rowLocation, err := s.loadForWrite(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindCatalogItem, auth.ActionDelete, itemID.String(), rowLocation); err != nil {
		return err
	}
	if item == nil {
		return apperr.Deniedf("catalog item %s not found", itemID)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, itemID); err != nil {
			return fmt.Errorf("failed to delete catalog item: %w", err)
		}
		return s.writeAudit(txCtx, p, model.ActionDeleteCatalogItem, item, nil)
	})
	if err != nil {
		return err
	}

	s.invalidateCatalog(item.LocationID, item.ID)
	s.broadcast("catalog.deleted", item)
	return nil
}

// targetLocation picks the location a create lands in: admins must name
// one, managers always use their own.
func (s *catalogService) targetLocation(p auth.Principal, requested string) (uuid.UUID, error) {
	if p.IsAdmin() {
		if requested == "" {
			return uuid.Nil, apperr.Invalidf("location_id is required")
		}
		target, err := uuid.Parse(requested)
		if err != nil {
			return uuid.Nil, apperr.Invalidf("invalid location_id")
		}
		return target, nil
	}
	if p.LocationID == nil {
		return uuid.Nil, apperr.Deniedf("principal %s has no home location", p.ID)
	}
	return *p.LocationID, nil
}

// loadForWrite fetches the authoritative row. A missing row returns a nil
// location so the gate denies it exactly like an out-of-scope row.
func (s *catalogService) loadForWrite(ctx context.Context, id uuid.UUID) (*model.CatalogItem, *uuid.UUID, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	loc := item.LocationID
	return item, &loc, nil
}

func (s *catalogService) writeAudit(ctx context.Context, p auth.Principal, action string, item *model.CatalogItem, payload interface{}) error {
	details, _ := json.Marshal(payload)
	uid := p.ID
	entry := &model.AuditLog{
		UserID:       &uid,
		Action:       action,
		ResourceKind: string(auth.KindCatalogItem),
		ResourceID:   item.ID.String(),
		Decision:     model.DecisionAllowed,
		Details:      string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// invalidateCatalog drops every key the write could have affected: the
// location's lists, the unrestricted admin lists, and the item across all
// scopes. Sibling locations keep their entries.
func (s *catalogService) invalidateCatalog(locationID, itemID uuid.UUID) {
	s.cache.Invalidate(
		cache.Key(auth.KindCatalogItem, auth.LocationScope(locationID))+":*",
		cache.Key(auth.KindCatalogItem, auth.Unrestricted())+":*",
		string(auth.KindCatalogItem)+":*:item:"+itemID.String(),
	)
}

func (s *catalogService) broadcast(event string, item *model.CatalogItem) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ws.Event{
		Event: event,
		Data: map[string]interface{}{
			"id":          item.ID.String(),
			"location_id": item.LocationID.String(),
			"sku":         item.SKU,
		},
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
