package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"platform/internal/apperr"
	"platform/internal/model"
)

// AuditSink receives authorization decision records. Implementations must
// tolerate being called from short-lived goroutines; the gate never waits
// for them.
type AuditSink interface {
	Record(ctx context.Context, entry *model.AuditLog)
}

// Gate wraps every read/write entry point: it runs the scope resolver,
// verifies row ownership on writes, and emits a decision record. A nil
// audit sink disables recording without affecting decisions.
type Gate struct {
	audit AuditSink
}

func NewGate(audit AuditSink) *Gate {
	return &Gate{audit: audit}
}

const auditTimeout = 5 * time.Second

// AuthorizeRead resolves the effective scope for a read. The returned
// filter must be merged into the outgoing query's predicate by the caller.
func (g *Gate) AuthorizeRead(ctx context.Context, p Principal, kind ResourceKind, requested *ScopeFilter) (ScopeFilter, error) {
	filter, err := Resolve(p, kind, ActionRead, requested)
	g.record(p, string(ActionRead), kind, "", err)
	return filter, err
}

// AuthorizeWrite resolves scope for a write and additionally verifies
// ownership: when the filter is location-pinned, the target row's location
// must match. A missing row (nil rowLocation) and an out-of-scope row both
// yield the same denial, so callers cannot test for existence.
func (g *Gate) AuthorizeWrite(ctx context.Context, p Principal, kind ResourceKind, action Action, resourceID string, rowLocation *uuid.UUID) (ScopeFilter, error) {
	filter, err := Resolve(p, kind, action, nil)
	if err != nil {
		g.record(p, string(action), kind, resourceID, err)
		return ScopeFilter{}, err
	}

	if filter.Kind == ScopeLocation {
		if rowLocation == nil {
			err = apperr.Deniedf("%s %s not found in scope", kind, resourceID)
		} else if *rowLocation != filter.LocationID {
			err = apperr.Deniedf("%s %s belongs to location %s, scope is %s", kind, resourceID, rowLocation, filter.LocationID)
		}
	}

	g.record(p, string(action), kind, resourceID, err)
	if err != nil {
		return ScopeFilter{}, err
	}
	return filter, nil
}

// AuthorizeCreate resolves scope for a create and pins the new row's
// location: non-admins may only create rows in their own location.
func (g *Gate) AuthorizeCreate(ctx context.Context, p Principal, kind ResourceKind, targetLocation uuid.UUID) (ScopeFilter, error) {
	filter, err := Resolve(p, kind, ActionCreate, nil)
	if err == nil && filter.Kind == ScopeLocation && targetLocation != filter.LocationID {
		err = apperr.Deniedf("create %s targets location %s outside scope %s", kind, targetLocation, filter.LocationID)
	}
	g.record(p, string(ActionCreate), kind, "", err)
	if err != nil {
		return ScopeFilter{}, err
	}
	return filter, nil
}

// record emits the decision fire-and-forget. Only denials caused by the
// authorization rules are tagged DENIED; resolver input errors still log
// their reason for operators.
func (g *Gate) record(p Principal, action string, kind ResourceKind, resourceID string, decisionErr error) {
	if g.audit == nil {
		return
	}

	decision := model.DecisionAllowed
	reason := ""
	if decisionErr != nil {
		decision = model.DecisionDenied
		reason = decisionErr.Error()
		if !errors.Is(decisionErr, apperr.ErrDenied) {
			reason = "non-authorization error: " + reason
		}
	}

	uid := p.ID
	entry := &model.AuditLog{
		UserID:       &uid,
		Action:       action,
		ResourceKind: string(kind),
		ResourceID:   resourceID,
		Decision:     decision,
		Reason:       reason,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("audit sink panic recovered: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		g.audit.Record(ctx, entry)
	}()
}
