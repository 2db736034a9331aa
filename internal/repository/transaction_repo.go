package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"platform/internal/auth"
	"platform/internal/model"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	CreateItem(ctx context.Context, item *model.TransactionItem) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, filter auth.ScopeFilter, page, limit int, status string) ([]model.Transaction, int64, error)
	ListBetween(ctx context.Context, filter auth.ScopeFilter, start, end time.Time) ([]model.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	return wrapDBErr(GetDB(ctx, r.db).Create(tx).Error)
}

func (r *transactionRepository) CreateItem(ctx context.Context, item *model.TransactionItem) error {
	return wrapDBErr(GetDB(ctx, r.db).Create(item).Error)
}

func (r *transactionRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var tx model.Transaction
	if err := GetDB(ctx, r.db).Preload("Items").First(&tx, "id = ?", id).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return &tx, nil
}

// FindByIDForUpdate locks the row for a status transition so two concurrent
// transitions cannot both pass the state-machine check.
func (r *transactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var tx model.Transaction
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tx, "id = ?", id).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return &tx, nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return wrapDBErr(GetDB(ctx, r.db).Model(&model.Transaction{}).Where("id = ?", id).Update("status", status).Error)
}

func (r *transactionRepository) List(ctx context.Context, filter auth.ScopeFilter, page, limit int, status string) ([]model.Transaction, int64, error) {
	var txs []model.Transaction
	var total int64

	db := applyScope(GetDB(ctx, r.db).Model(&model.Transaction{}), "transactions", filter)
	if status != "" {
		db = db.Where("transactions.status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, wrapDBErr(err)
	}

	offset := (page - 1) * limit
	if err := db.Preload("Items").
		Order("transactions.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, 0, wrapDBErr(err)
	}

	return txs, total, nil
}

// ListBetween returns every scoped transaction in the inclusive range with
// items preloaded. The metrics engine aggregates these in memory.
func (r *transactionRepository) ListBetween(ctx context.Context, filter auth.ScopeFilter, start, end time.Time) ([]model.Transaction, error) {
	var txs []model.Transaction
	db := applyScope(GetDB(ctx, r.db).Model(&model.Transaction{}), "transactions", filter)
	if err := db.Preload("Items").
		Where("transactions.created_at >= ? AND transactions.created_at <= ?", start, end).
		Order("transactions.created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, wrapDBErr(err)
	}
	return txs, nil
}
