package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit action constants for write paths and authorization decisions.
const (
	ActionCreateCatalogItem  = "CREATE_CATALOG_ITEM"
	ActionUpdateCatalogItem  = "UPDATE_CATALOG_ITEM"
	ActionDeleteCatalogItem  = "DELETE_CATALOG_ITEM"
	ActionCreateRegion       = "CREATE_REGION"
	ActionCreateLocation     = "CREATE_LOCATION"
	ActionUpdateLocation     = "UPDATE_LOCATION"
	ActionDeleteLocation     = "DELETE_LOCATION"
	ActionCreateTransaction  = "CREATE_TRANSACTION"
	ActionAddTransactionItem = "ADD_TRANSACTION_ITEM"
	ActionTransactionStatus  = "TRANSACTION_STATUS_CHANGE"
	ActionCreateUser         = "CREATE_USER"
	ActionUpdateUser         = "UPDATE_USER"
	ActionDeleteUser         = "DELETE_USER"
)

// Authorization decisions recorded per gate evaluation.
const (
	DecisionAllowed = "ALLOWED"
	DecisionDenied  = "DENIED"
)

// AuditLog tracks who attempted what, against which resource, and how the
// gate decided. Reason keeps the precise internal cause for operators; the
// API response stays generic.
type AuditLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User         *User      `gorm:"foreignKey:UserID" json:"user"`
	Action       string     `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceKind string     `gorm:"type:varchar(50);index" json:"resource_kind"`
	ResourceID   string     `gorm:"type:varchar(50);index" json:"resource_id"`
	Decision     string     `gorm:"type:varchar(20);not null;index" json:"decision"`
	Reason       string     `gorm:"type:text" json:"reason,omitempty"`
	Details      string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}
