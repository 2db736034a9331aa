package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogItem represents a sellable item belonging to exactly one location.
// Prices are stored as fixed-point decimals so revenue sums never drift.
type CatalogItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LocationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"location_id"`
	Location   *Location       `gorm:"foreignKey:LocationID" json:"-"`
	SKU        string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Available  bool            `gorm:"default:true;not null" json:"available"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}
