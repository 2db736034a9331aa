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
	ws "platform/internal/websocket"
)

// DTOs
type TransactionItemRequest struct {
	CatalogItemID string `json:"catalog_item_id" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required,gt=0"`
}

type CreateTransactionRequest struct {
	LocationID string                   `json:"location_id"` // required for admins
	CustomerID string                   `json:"customer_id"` // defaults to the caller
	Items      []TransactionItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdateTransactionStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type TransactionItemResponse struct {
	CatalogItemID string `json:"catalog_item_id"`
	Quantity      int    `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
}

type TransactionResponse struct {
	ID         string                    `json:"id"`
	LocationID string                    `json:"location_id"`
	CustomerID string                    `json:"customer_id"`
	Status     string                    `json:"status"`
	Total      string                    `json:"total"`
	Items      []TransactionItemResponse `json:"items"`
	CreatedAt  string                    `json:"created_at"`
}

type TransactionService interface {
	List(ctx context.Context, p auth.Principal, requested *auth.ScopeFilter, page, limit int, status string) ([]TransactionResponse, int64, error)
	Get(ctx context.Context, p auth.Principal, id string) (*TransactionResponse, error)
	Create(ctx context.Context, p auth.Principal, req CreateTransactionRequest) (*TransactionResponse, error)
	AddItem(ctx context.Context, p auth.Principal, id string, req TransactionItemRequest) (*TransactionResponse, error)
	UpdateStatus(ctx context.Context, p auth.Principal, id string, req UpdateTransactionStatusRequest) (*TransactionResponse, error)
}

type transactionService struct {
	gate        *auth.Gate
	repo        repository.TransactionRepository
	catalogRepo repository.CatalogRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	cache       *cache.Cache
	hub         *ws.Hub
}

func NewTransactionService(
	gate *auth.Gate,
	repo repository.TransactionRepository,
	catalogRepo repository.CatalogRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	c *cache.Cache,
	hub *ws.Hub,
) TransactionService {
	return &transactionService{
		gate:        gate,
		repo:        repo,
		catalogRepo: catalogRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		cache:       c,
		hub:         hub,
	}
}

func mapTransaction(tx *model.Transaction) *TransactionResponse {
	items := make([]TransactionItemResponse, 0, len(tx.Items))
	for _, item := range tx.Items {
		items = append(items, TransactionItemResponse{
			CatalogItemID: item.CatalogItemID.String(),
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice.StringFixed(2),
		})
	}
	return &TransactionResponse{
		ID:         tx.ID.String(),
		LocationID: tx.LocationID.String(),
		CustomerID: tx.CustomerID.String(),
		Status:     tx.Status,
		Total:      tx.Total().StringFixed(2),
		Items:      items,
		CreatedAt:  tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *transactionService) List(ctx context.Context, p auth.Principal, requested *auth.ScopeFilter, page, limit int, status string) ([]TransactionResponse, int64, error) {
	if status != "" && !model.ValidTxStatus(status) {
		return nil, 0, apperr.Invalidf("unknown status %q", status)
	}

	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindTransaction, requested)
	if err != nil {
		return nil, 0, err
	}

	key := cache.Key(auth.KindTransaction, scope, "list", strconv.Itoa(page), strconv.Itoa(limit), status)

	var payload struct {
		Transactions []TransactionResponse `json:"transactions"`
		Total        int64                 `json:"total"`
	}
	err = s.cache.Fetch(ctx, key, cache.CategoryTransaction, &payload, func(ctx context.Context) (interface{}, error) {
		txs, total, err := s.repo.List(ctx, scope, page, limit, status)
		if err != nil {
			return nil, err
		}
		out := make([]TransactionResponse, 0, len(txs))
		for i := range txs {
			out = append(out, *mapTransaction(&txs[i]))
		}
		return map[string]interface{}{"transactions": out, "total": total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return payload.Transactions, payload.Total, nil
}

func (s *transactionService) Get(ctx context.Context, p auth.Principal, id string) (*TransactionResponse, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid transaction id")
	}

	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindTransaction, nil)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.FindByIDWithItems(ctx, txID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("transaction %s not found", txID)
		}
		return nil, err
	}
	if scope.Kind == auth.ScopeLocation && tx.LocationID != scope.LocationID {
		return nil, apperr.Deniedf("transaction %s outside scope", txID)
	}
	return mapTransaction(tx), nil
}

func (s *transactionService) Create(ctx context.Context, p auth.Principal, req CreateTransactionRequest) (*TransactionResponse, error) {
	target, err := s.targetLocation(p, req.LocationID)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.AuthorizeCreate(ctx, p, auth.KindTransaction, target); err != nil {
		return nil, err
	}

	customerID := p.ID
	if req.CustomerID != "" && p.Role != model.RoleMember {
		customerID, err = uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, apperr.Invalidf("invalid customer_id")
		}
	}

	tx := model.Transaction{
		LocationID: target,
		CustomerID: customerID,
		Status:     model.TxStatusPending,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, line := range req.Items {
			item, err := s.resolveCatalogItem(txCtx, line.CatalogItemID, target)
			if err != nil {
				return err
			}
			tx.Items = append(tx.Items, model.TransactionItem{
				CatalogItemID: item.ID,
				Quantity:      line.Quantity,
				UnitPrice:     item.Price,
			})
		}

		if err := s.repo.Create(txCtx, &tx); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		return s.writeTxAudit(txCtx, p, model.ActionCreateTransaction, tx.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTransactions(tx.LocationID, tx.ID)
	s.broadcast("transaction.created", &tx)
	return mapTransaction(&tx), nil
}

func (s *transactionService) AddItem(ctx context.Context, p auth.Principal, id string, req TransactionItemRequest) (*TransactionResponse, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid transaction id")
	}

	var result *model.Transaction
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Same row lock as status transitions: a concurrent PENDING→PLACED
		// must not slip between the status check and the insert.
		tx, err := s.repo.FindByIDForUpdate(txCtx, txID)
		var rowLocation *uuid.UUID
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			tx = nil
		} else {
			loc := tx.LocationID
			rowLocation = &loc
		}

		if _, err := s.gate.AuthorizeWrite(txCtx, p, auth.KindTransaction, auth.ActionAppendItem, txID.String(), rowLocation); err != nil {
			return err
		}
		if tx == nil {
			return apperr.Deniedf("transaction %s not found", txID)
		}

		// Members may only touch their own transaction.
		if p.Role == model.RoleMember && tx.CustomerID != p.ID {
			return apperr.Deniedf("transaction %s belongs to another customer", txID)
		}
		if tx.Status != model.TxStatusPending {
			return apperr.NewConflict(tx.Status)
		}

		item, err := s.resolveCatalogItem(txCtx, req.CatalogItemID, tx.LocationID)
		if err != nil {
			return err
		}

		line := model.TransactionItem{
			TransactionID: tx.ID,
			CatalogItemID: item.ID,
			Quantity:      req.Quantity,
			UnitPrice:     item.Price,
		}
		if err := s.repo.CreateItem(txCtx, &line); err != nil {
			return fmt.Errorf("failed to add transaction item: %w", err)
		}
		if err := s.writeTxAudit(txCtx, p, model.ActionAddTransactionItem, tx.ID, req); err != nil {
			return err
		}

		result, err = s.repo.FindByIDWithItems(txCtx, tx.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTransactions(result.LocationID, result.ID)
	return mapTransaction(result), nil
}

func (s *transactionService) UpdateStatus(ctx context.Context, p auth.Principal, id string, req UpdateTransactionStatusRequest) (*TransactionResponse, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid transaction id")
	}
	if !model.ValidTxStatus(req.Status) {
		return nil, apperr.Invalidf("unknown status %q", req.Status)
	}

	var result *model.Transaction
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Row lock so concurrent transitions serialize on the state check.
		tx, err := s.repo.FindByIDForUpdate(txCtx, txID)
		var rowLocation *uuid.UUID
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			tx = nil
		} else {
			loc := tx.LocationID
			rowLocation = &loc
		}

		if _, err := s.gate.AuthorizeWrite(txCtx, p, auth.KindTransaction, auth.ActionUpdate, txID.String(), rowLocation); err != nil {
			return err
		}
		if tx == nil {
			return apperr.Deniedf("transaction %s not found", txID)
		}

		if !model.CanTransition(tx.Status, req.Status) {
			return apperr.NewConflict(tx.Status)
		}

		if err := s.repo.UpdateStatus(txCtx, txID, req.Status); err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		if err := s.writeTxAudit(txCtx, p, model.ActionTransactionStatus, txID, req); err != nil {
			return err
		}

		result, err = s.repo.FindByIDWithItems(txCtx, txID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTransactions(result.LocationID, result.ID)
	s.broadcast("transaction.status_changed", result)
	return mapTransaction(result), nil
}

func (s *transactionService) targetLocation(p auth.Principal, requested string) (uuid.UUID, error) {
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

// resolveCatalogItem validates a line item against the authoritative
// catalog: the item must exist, sit in the transaction's location, and be
// available. Its current price is captured onto the line.
func (s *transactionService) resolveCatalogItem(ctx context.Context, rawID string, locationID uuid.UUID) (*model.CatalogItem, error) {
	itemID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperr.Invalidf("invalid catalog_item_id %q", rawID)
	}
	item, err := s.catalogRepo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalidf("catalog item %s does not exist", itemID)
		}
		return nil, err
	}
	if item.LocationID != locationID {
		return nil, apperr.Invalidf("catalog item %s is not sold at this location", itemID)
	}
	if !item.Available {
		return nil, apperr.Invalidf("catalog item %s is not available", itemID)
	}
	return item, nil
}

func (s *transactionService) writeTxAudit(ctx context.Context, p auth.Principal, action string, txID uuid.UUID, payload interface{}) error {
	details, _ := json.Marshal(payload)
	uid := p.ID
	entry := &model.AuditLog{
		UserID:       &uid,
		Action:       action,
		ResourceKind: string(auth.KindTransaction),
		ResourceID:   txID.String(),
		Decision:     model.DecisionAllowed,
		Details:      string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// invalidateTransactions drops the location's transaction lists, the
// unrestricted lists, and every dashboard over the affected scope. Metrics
// aggregate transactions, so they go stale together.
func (s *transactionService) invalidateTransactions(locationID, txID uuid.UUID) {
	s.cache.Invalidate(
		cache.Key(auth.KindTransaction, auth.LocationScope(locationID))+":*",
		cache.Key(auth.KindTransaction, auth.Unrestricted())+":*",
		string(auth.KindTransaction)+":*:item:"+txID.String(),
		cache.Key(auth.KindMetrics, auth.LocationScope(locationID))+":*",
		cache.Key(auth.KindMetrics, auth.Unrestricted())+":*",
	)
}

func (s *transactionService) broadcast(event string, tx *model.Transaction) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ws.Event{
		Event: event,
		Data: map[string]interface{}{
			"id":          tx.ID.String(),
			"location_id": tx.LocationID.String(),
			"status":      tx.Status,
		},
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
