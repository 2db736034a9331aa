package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Region groups locations for regional scoping and reporting.
type Region struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is the scoping unit for catalog items and transactions. Owned by
// the system; referenced, never owned, by User, CatalogItem and Transaction.
type Location struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	RegionID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"region_id"`
	Region    *Region        `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	Active    bool           `gorm:"default:true;not null" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
