package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"platform/internal/apperr"
	"platform/internal/auth"
)

// applyScope merges a resolved scope filter into the query predicate for a
// table carrying a location_id column. Callers must pass the already
// resolved filter; repositories never see raw request filters.
func applyScope(db *gorm.DB, table string, filter auth.ScopeFilter) *gorm.DB {
	switch filter.Kind {
	case auth.ScopeLocation:
		return db.Where(table+".location_id = ?", filter.LocationID)
	case auth.ScopeRegion:
		return db.Joins("JOIN locations ON locations.id = "+table+".location_id").
			Where("locations.region_id = ?", filter.RegionID)
	default:
		return db
	}
}

// wrapDBErr maps storage failures onto the error taxonomy. Record-not-found
// passes through untouched so callers can fold it into a Denied; everything
// else (connection loss, timeout) is retryable Unavailable.
func wrapDBErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
}
