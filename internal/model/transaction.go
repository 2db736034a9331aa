package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction status constants. Transitions form a fixed state machine:
// PENDING→PLACED→COMPLETED, PENDING→CANCELLED, PLACED→CANCELLED.
// COMPLETED and CANCELLED are terminal.
const (
	TxStatusPending   = "PENDING"
	TxStatusPlaced    = "PLACED"
	TxStatusCancelled = "CANCELLED"
	TxStatusCompleted = "COMPLETED"
)

var txTransitions = map[string][]string{
	TxStatusPending: {TxStatusPlaced, TxStatusCancelled},
	TxStatusPlaced:  {TxStatusCompleted, TxStatusCancelled},
}

// CanTransition reports whether moving a transaction from one status to
// another is a legal state-machine step.
func CanTransition(from, to string) bool {
	for _, next := range txTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidTxStatus reports whether s is one of the four known statuses.
func ValidTxStatus(s string) bool {
	switch s {
	case TxStatusPending, TxStatusPlaced, TxStatusCancelled, TxStatusCompleted:
		return true
	}
	return false
}

// Transaction represents a customer order against one location.
type Transaction struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LocationID uuid.UUID         `gorm:"type:uuid;not null;index" json:"location_id"`
	Location   *Location         `gorm:"foreignKey:LocationID" json:"-"`
	CustomerID uuid.UUID         `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status     string            `gorm:"type:varchar(20);default:'PENDING';not null" json:"status"`
	Items      []TransactionItem `gorm:"foreignKey:TransactionID" json:"items"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Total sums quantity × unit price across the line items.
func (t *Transaction) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// TransactionItem is a line item within a Transaction. UnitPrice is captured
// at order time so later catalog price changes do not rewrite history.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	CatalogItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"catalog_item_id"`
	CatalogItem   *CatalogItem    `gorm:"foreignKey:CatalogItemID" json:"-"`
	Quantity      int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}
