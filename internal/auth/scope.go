package auth

import (
	"github.com/google/uuid"

	"platform/internal/apperr"
	"platform/internal/model"
)

// ResourceKind identifies what class of data an operation touches.
type ResourceKind string

const (
	KindCatalogItem ResourceKind = "catalog_item"
	KindTransaction ResourceKind = "transaction"
	KindLocation    ResourceKind = "location"
	KindAccount     ResourceKind = "account"
	KindMetrics     ResourceKind = "metrics"
	KindAudit       ResourceKind = "audit"
	KindReference   ResourceKind = "reference"
)

// LocationScoped reports whether rows of this kind partition by location,
// which forces managers and members onto their home location.
func (k ResourceKind) LocationScoped() bool {
	switch k {
	case KindCatalogItem, KindTransaction, KindMetrics:
		return true
	}
	return false
}

// Action classifies the verb of an operation.
type Action string

const (
	ActionRead       Action = "read"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionAppendItem Action = "append_item" // add a line item to an existing transaction
)

// Write reports whether the action mutates data.
func (a Action) Write() bool { return a != ActionRead }

// ScopeKind is the shape of a resolved data-visibility filter.
type ScopeKind string

const (
	ScopeNone     ScopeKind = "NONE"
	ScopeLocation ScopeKind = "LOCATION"
	ScopeRegion   ScopeKind = "REGION"
)

// ScopeFilter is the resolved, enforceable representation of scope for one
// request. Derived per request, never persisted.
type ScopeFilter struct {
	Kind       ScopeKind
	LocationID uuid.UUID
	RegionID   uuid.UUID
}

// Unrestricted returns the admin-wide filter.
func Unrestricted() ScopeFilter { return ScopeFilter{Kind: ScopeNone} }

// LocationScope returns a filter pinned to one location.
func LocationScope(id uuid.UUID) ScopeFilter {
	return ScopeFilter{Kind: ScopeLocation, LocationID: id}
}

// RegionScope returns a filter pinned to one region.
func RegionScope(id uuid.UUID) ScopeFilter {
	return ScopeFilter{Kind: ScopeRegion, RegionID: id}
}

// Token renders the scope as a stable cache-key fragment. Two principals
// with different scopes can never collide on a key built from this.
func (f ScopeFilter) Token() string {
	switch f.Kind {
	case ScopeLocation:
		return "loc:" + f.LocationID.String()
	case ScopeRegion:
		return "region:" + f.RegionID.String()
	default:
		return "all"
	}
}

// Resolve maps (principal, resource kind, action, requested filter) to the
// effective scope filter or a denial. Pure and synchronous: no I/O, never
// blocks. Rules evaluate in fixed order, first match wins:
//
//  1. inactive principal → denied
//  2. admin with no requested filter → unrestricted
//  3. admin with a requested filter → honored as-is (voluntary narrowing)
//  4. manager/member on a location-scoped kind → forced to the home
//     location, silently overriding any requested filter; members may only
//     write {create transaction, append item to own pending transaction}
//  5. location metadata: reads narrow to home location (or own region when
//     explicitly requested); writes are admin-only
//  6. static reference data: readable by everyone, admin-write
//  7. everything else (accounts, audit) → denied for non-admins
func Resolve(p Principal, kind ResourceKind, action Action, requested *ScopeFilter) (ScopeFilter, error) {
	if !p.Active {
		return ScopeFilter{}, apperr.Deniedf("principal %s is inactive", p.ID)
	}

	if p.IsAdmin() {
		if requested != nil {
			return *requested, nil
		}
		return Unrestricted(), nil
	}

	// Managers and members always carry a home location.
	if p.LocationID == nil {
		return ScopeFilter{}, apperr.Deniedf("principal %s has no home location", p.ID)
	}
	home := LocationScope(*p.LocationID)

	if kind.LocationScoped() {
		if action.Write() && p.Role == model.RoleMember && !memberWriteAllowed(kind, action) {
			return ScopeFilter{}, apperr.Deniedf("member may not %s %s", action, kind)
		}
		// Requested filters are overridden, never merged: a caller-supplied
		// filter for a different location must not widen visibility.
		return home, nil
	}

	switch kind {
	case KindLocation:
		if action == ActionRead {
			if requested != nil && requested.Kind == ScopeRegion {
				if p.RegionID == nil || requested.RegionID != *p.RegionID {
					return ScopeFilter{}, apperr.Deniedf("principal %s may not read across region boundary", p.ID)
				}
				return RegionScope(*p.RegionID), nil
			}
			return home, nil
		}
		return ScopeFilter{}, apperr.Deniedf("%s may not %s locations", p.Role, action)
	case KindReference:
		if action == ActionRead {
			return Unrestricted(), nil
		}
		return ScopeFilter{}, apperr.Deniedf("%s may not %s reference data", p.Role, action)
	default:
		return ScopeFilter{}, apperr.Deniedf("%s may not access %s", p.Role, kind)
	}
}

// memberWriteAllowed lists the only write-class operations a member holds:
// creating a transaction and appending an item to an existing one. Whether
// that transaction is the member's own and still PENDING is verified by the
// service against the authoritative row.
func memberWriteAllowed(kind ResourceKind, action Action) bool {
	if kind != KindTransaction {
		return false
	}
	return action == ActionCreate || action == ActionAppendItem
}
