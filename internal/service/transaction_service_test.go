package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"platform/internal/apperr"
	"platform/internal/auth"
	"platform/internal/model"
	"platform/internal/repository"
)

// memTxRepo backs the transaction service with an in-memory row set.
type memTxRepo struct {
	repository.TransactionRepository
	rows        map[uuid.UUID]*model.Transaction
	lockedReads int
}

func newMemTxRepo(txs ...*model.Transaction) *memTxRepo {
	rows := map[uuid.UUID]*model.Transaction{}
	for _, tx := range txs {
		rows[tx.ID] = tx
	}
	return &memTxRepo{rows: rows}
}

func (r *memTxRepo) find(id uuid.UUID) (*model.Transaction, error) {
	tx, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *tx
	cp.Items = append([]model.TransactionItem(nil), tx.Items...)
	return &cp, nil
}

func (r *memTxRepo) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return r.find(id)
}

func (r *memTxRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	r.lockedReads++
	return r.find(id)
}

func (r *memTxRepo) Create(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	cp := *tx
	r.rows[tx.ID] = &cp
	return nil
}

func (r *memTxRepo) CreateItem(ctx context.Context, item *model.TransactionItem) error {
	tx, ok := r.rows[item.TransactionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	tx.Items = append(tx.Items, *item)
	return nil
}

func (r *memTxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tx, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	tx.Status = status
	return nil
}

type memCatalogRepo struct {
	repository.CatalogRepository
	items map[uuid.UUID]*model.CatalogItem
}

func (r *memCatalogRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CatalogItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

type nopAuditRepo struct {
	repository.AuditRepository
	entries []*model.AuditLog
}

func (r *nopAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

// passthroughTxManager runs the unit of work without a real database.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type txFixture struct {
	svc     TransactionService
	txRepo  *memTxRepo
	audit   *nopAuditRepo
	loc     uuid.UUID
	itemID  uuid.UUID
	manager auth.Principal
	member  auth.Principal
}

func newTxFixture(t *testing.T, txs ...*model.Transaction) *txFixture {
	t.Helper()

	loc := uuid.New()
	itemID := uuid.New()
	region := uuid.New()

	txRepo := newMemTxRepo(txs...)
	catalogRepo := &memCatalogRepo{items: map[uuid.UUID]*model.CatalogItem{
		itemID: {
			ID:         itemID,
			LocationID: loc,
			SKU:        "SKU-1",
			Name:       "Widget",
			Price:      decimal.RequireFromString("9.99"),
			Available:  true,
		},
	}}
	audit := &nopAuditRepo{}

	svc := NewTransactionService(
		auth.NewGate(nil),
		txRepo,
		catalogRepo,
		audit,
		passthroughTxManager{},
		nil, // no cache
		nil, // no hub
	)

	return &txFixture{
		svc:    svc,
		txRepo: txRepo,
		audit:  audit,
		loc:    loc,
		itemID: itemID,
		manager: auth.Principal{
			ID: uuid.New(), Role: model.RoleManager,
			LocationID: &loc, RegionID: &region, Active: true,
		},
		member: auth.Principal{
			ID: uuid.New(), Role: model.RoleMember,
			LocationID: &loc, RegionID: &region, Active: true,
		},
	}
}

func (f *txFixture) pendingTx(customer uuid.UUID) *model.Transaction {
	tx := &model.Transaction{
		ID:         uuid.New(),
		LocationID: f.loc,
		CustomerID: customer,
		Status:     model.TxStatusPending,
	}
	f.txRepo.rows[tx.ID] = tx
	return tx
}

func TestTransactionCreateCapturesCurrentPrice(t *testing.T) {
	f := newTxFixture(t)

	resp, err := f.svc.Create(context.Background(), f.member, CreateTransactionRequest{
		Items: []TransactionItemRequest{{CatalogItemID: f.itemID.String(), Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.TxStatusPending, resp.Status)
	assert.Equal(t, f.loc.String(), resp.LocationID)
	assert.Equal(t, f.member.ID.String(), resp.CustomerID, "member orders are always their own")
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "9.99", resp.Items[0].UnitPrice)
	assert.Equal(t, "29.97", resp.Total)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, model.ActionCreateTransaction, f.audit.entries[0].Action)
}

func TestTransactionCreateUnknownItemRejected(t *testing.T) {
	f := newTxFixture(t)

	_, err := f.svc.Create(context.Background(), f.member, CreateTransactionRequest{
		Items: []TransactionItemRequest{{CatalogItemID: uuid.New().String(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Empty(t, f.audit.entries, "a failed create leaves no audit trail of success")
}

func TestTransactionStatusTransitions(t *testing.T) {
	f := newTxFixture(t)
	tx := f.pendingTx(f.member.ID)

	resp, err := f.svc.UpdateStatus(context.Background(), f.manager, tx.ID.String(), UpdateTransactionStatusRequest{Status: model.TxStatusPlaced})
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusPlaced, resp.Status)

	resp, err = f.svc.UpdateStatus(context.Background(), f.manager, tx.ID.String(), UpdateTransactionStatusRequest{Status: model.TxStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, model.TxStatusCompleted, resp.Status)

	// Terminal states reject every further move, reporting where we are.
	_, err = f.svc.UpdateStatus(context.Background(), f.manager, tx.ID.String(), UpdateTransactionStatusRequest{Status: model.TxStatusCancelled})
	require.ErrorIs(t, err, apperr.ErrConflict)

	var conflict *apperr.Conflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.TxStatusCompleted, conflict.Current)
}

func TestTransactionStatusSkippingPlacedRejected(t *testing.T) {
	f := newTxFixture(t)
	tx := f.pendingTx(f.member.ID)

	_, err := f.svc.UpdateStatus(context.Background(), f.manager, tx.ID.String(), UpdateTransactionStatusRequest{Status: model.TxStatusCompleted})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// The row is untouched after the rejected move.
	stored, findErr := f.txRepo.find(tx.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.TxStatusPending, stored.Status)
}

func TestTransactionMemberCannotChangeStatus(t *testing.T) {
	f := newTxFixture(t)
	tx := f.pendingTx(f.member.ID)

	_, err := f.svc.UpdateStatus(context.Background(), f.member, tx.ID.String(), UpdateTransactionStatusRequest{Status: model.TxStatusPlaced})
	assert.ErrorIs(t, err, apperr.ErrDenied)
}

func TestTransactionAddItemOwnership(t *testing.T) {
	f := newTxFixture(t)
	own := f.pendingTx(f.member.ID)
	foreign := f.pendingTx(uuid.New())

	req := TransactionItemRequest{CatalogItemID: f.itemID.String(), Quantity: 2}

	resp, err := f.svc.AddItem(context.Background(), f.member, own.ID.String(), req)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	// Someone else's pending transaction is out of reach, same shape of
	// denial as a transaction that does not exist.
	_, errForeign := f.svc.AddItem(context.Background(), f.member, foreign.ID.String(), req)
	_, errMissing := f.svc.AddItem(context.Background(), f.member, uuid.New().String(), req)
	assert.ErrorIs(t, errForeign, apperr.ErrDenied)
	assert.ErrorIs(t, errMissing, apperr.ErrDenied)

	// Managers are not bound by ownership within their location.
	_, err = f.svc.AddItem(context.Background(), f.manager, foreign.ID.String(), req)
	assert.NoError(t, err)
}

func TestTransactionAddItemTakesRowLock(t *testing.T) {
	f := newTxFixture(t)
	tx := f.pendingTx(f.member.ID)

	_, err := f.svc.AddItem(context.Background(), f.member, tx.ID.String(), TransactionItemRequest{CatalogItemID: f.itemID.String(), Quantity: 1})
	require.NoError(t, err)

	// The status check must run against a locked row, like a status
	// transition does, so a concurrent PENDING→PLACED cannot slip between
	// the check and the insert.
	assert.Equal(t, 1, f.txRepo.lockedReads)
}

func TestTransactionAddItemOnlyWhilePending(t *testing.T) {
	f := newTxFixture(t)
	tx := f.pendingTx(f.member.ID)
	tx.Status = model.TxStatusPlaced

	_, err := f.svc.AddItem(context.Background(), f.member, tx.ID.String(), TransactionItemRequest{CatalogItemID: f.itemID.String(), Quantity: 1})
	require.ErrorIs(t, err, apperr.ErrConflict)

	var conflict *apperr.Conflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.TxStatusPlaced, conflict.Current)
}

func TestTransactionListRejectsUnknownStatus(t *testing.T) {
	f := newTxFixture(t)

	_, _, err := f.svc.List(context.Background(), f.manager, nil, 1, 20, "SHIPPED")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestTransactionGetHidesForeignRows(t *testing.T) {
	f := newTxFixture(t)
	tx := f.pendingTx(f.member.ID)

	otherLoc := uuid.New()
	region := uuid.New()
	stranger := auth.Principal{
		ID: uuid.New(), Role: model.RoleManager,
		LocationID: &otherLoc, RegionID: &region, Active: true,
	}

	_, errForeign := f.svc.Get(context.Background(), stranger, tx.ID.String())
	_, errMissing := f.svc.Get(context.Background(), stranger, uuid.New().String())
	assert.ErrorIs(t, errForeign, apperr.ErrDenied)
	assert.ErrorIs(t, errMissing, apperr.ErrDenied)
}
