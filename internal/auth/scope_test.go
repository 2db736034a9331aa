package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platform/internal/apperr"
	"platform/internal/model"
)

func adminPrincipal() Principal {
	return Principal{ID: uuid.New(), Role: model.RoleAdmin, Active: true}
}

func managerPrincipal(loc uuid.UUID) Principal {
	region := uuid.New()
	return Principal{ID: uuid.New(), Role: model.RoleManager, LocationID: &loc, RegionID: &region, Active: true}
}

func memberPrincipal(loc uuid.UUID) Principal {
	region := uuid.New()
	return Principal{ID: uuid.New(), Role: model.RoleMember, LocationID: &loc, RegionID: &region, Active: true}
}

func TestResolveInactivePrincipalDeniedFirst(t *testing.T) {
	p := adminPrincipal()
	p.Active = false

	for _, kind := range []ResourceKind{KindCatalogItem, KindTransaction, KindLocation, KindAccount, KindMetrics, KindAudit, KindReference} {
		_, err := Resolve(p, kind, ActionRead, nil)
		assert.ErrorIs(t, err, apperr.ErrDenied, "inactive admin must be denied on %s", kind)
	}
}

func TestResolveAdmin(t *testing.T) {
	p := adminPrincipal()

	filter, err := Resolve(p, KindTransaction, ActionRead, nil)
	require.NoError(t, err)
	assert.Equal(t, ScopeNone, filter.Kind)

	// Voluntary narrowing is honored as-is.
	loc := uuid.New()
	requested := LocationScope(loc)
	filter, err = Resolve(p, KindTransaction, ActionRead, &requested)
	require.NoError(t, err)
	assert.Equal(t, ScopeLocation, filter.Kind)
	assert.Equal(t, loc, filter.LocationID)

	region := uuid.New()
	requestedRegion := RegionScope(region)
	filter, err = Resolve(p, KindLocation, ActionRead, &requestedRegion)
	require.NoError(t, err)
	assert.Equal(t, ScopeRegion, filter.Kind)
	assert.Equal(t, region, filter.RegionID)
}

func TestResolveRequestedFilterNeverWidensScope(t *testing.T) {
	home := uuid.New()
	other := uuid.New()

	for _, p := range []Principal{managerPrincipal(home), memberPrincipal(home)} {
		requested := LocationScope(other)
		filter, err := Resolve(p, KindCatalogItem, ActionRead, &requested)
		require.NoError(t, err)

		// Silently overridden to home, never honored, never an error.
		assert.Equal(t, ScopeLocation, filter.Kind)
		assert.Equal(t, home, filter.LocationID, "role %s must be pinned to home location", p.Role)
	}
}

func TestResolveLocationScopedKinds(t *testing.T) {
	home := uuid.New()

	tests := []struct {
		name    string
		p       Principal
		kind    ResourceKind
		action  Action
		wantErr bool
	}{
		{"manager reads catalog", managerPrincipal(home), KindCatalogItem, ActionRead, false},
		{"manager writes catalog", managerPrincipal(home), KindCatalogItem, ActionUpdate, false},
		{"manager updates transaction status", managerPrincipal(home), KindTransaction, ActionUpdate, false},
		{"manager reads metrics", managerPrincipal(home), KindMetrics, ActionRead, false},
		{"member reads catalog", memberPrincipal(home), KindCatalogItem, ActionRead, false},
		{"member reads transactions", memberPrincipal(home), KindTransaction, ActionRead, false},
		{"member creates transaction", memberPrincipal(home), KindTransaction, ActionCreate, false},
		{"member appends transaction item", memberPrincipal(home), KindTransaction, ActionAppendItem, false},
		{"member updates transaction status", memberPrincipal(home), KindTransaction, ActionUpdate, true},
		{"member deletes transaction", memberPrincipal(home), KindTransaction, ActionDelete, true},
		{"member creates catalog item", memberPrincipal(home), KindCatalogItem, ActionCreate, true},
		{"member updates catalog item", memberPrincipal(home), KindCatalogItem, ActionUpdate, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filter, err := Resolve(tc.p, tc.kind, tc.action, nil)
			if tc.wantErr {
				assert.ErrorIs(t, err, apperr.ErrDenied)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ScopeLocation, filter.Kind)
			assert.Equal(t, home, filter.LocationID)
		})
	}
}

func TestResolveLocationMetadata(t *testing.T) {
	home := uuid.New()
	p := managerPrincipal(home)

	// Plain read narrows to home location.
	filter, err := Resolve(p, KindLocation, ActionRead, nil)
	require.NoError(t, err)
	assert.Equal(t, LocationScope(home), filter)

	// Reading the own region is allowed when explicitly requested.
	ownRegion := RegionScope(*p.RegionID)
	filter, err = Resolve(p, KindLocation, ActionRead, &ownRegion)
	require.NoError(t, err)
	assert.Equal(t, ScopeRegion, filter.Kind)
	assert.Equal(t, *p.RegionID, filter.RegionID)

	// A foreign region is a denial, not a silent override.
	foreign := RegionScope(uuid.New())
	_, err = Resolve(p, KindLocation, ActionRead, &foreign)
	assert.ErrorIs(t, err, apperr.ErrDenied)

	// Location writes are admin-only.
	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		_, err := Resolve(p, KindLocation, action, nil)
		assert.ErrorIs(t, err, apperr.ErrDenied)
	}
}

func TestResolveAccountsAndAuditAdminOnly(t *testing.T) {
	home := uuid.New()
	for _, p := range []Principal{managerPrincipal(home), memberPrincipal(home)} {
		for _, kind := range []ResourceKind{KindAccount, KindAudit} {
			_, err := Resolve(p, kind, ActionRead, nil)
			assert.ErrorIs(t, err, apperr.ErrDenied, "%s must not read %s", p.Role, kind)
		}
	}

	_, err := Resolve(adminPrincipal(), KindAccount, ActionUpdate, nil)
	assert.NoError(t, err)
}

func TestResolveReferenceData(t *testing.T) {
	home := uuid.New()

	for _, p := range []Principal{adminPrincipal(), managerPrincipal(home), memberPrincipal(home)} {
		filter, err := Resolve(p, KindReference, ActionRead, nil)
		require.NoError(t, err)
		assert.Equal(t, ScopeNone, filter.Kind)
	}

	_, err := Resolve(managerPrincipal(home), KindReference, ActionCreate, nil)
	assert.ErrorIs(t, err, apperr.ErrDenied)
}

func TestResolveNonAdminWithoutHomeLocation(t *testing.T) {
	p := Principal{ID: uuid.New(), Role: model.RoleManager, Active: true}
	_, err := Resolve(p, KindCatalogItem, ActionRead, nil)
	assert.ErrorIs(t, err, apperr.ErrDenied)
}

func TestScopeFilterToken(t *testing.T) {
	loc := uuid.New()
	region := uuid.New()

	assert.Equal(t, "all", Unrestricted().Token())
	assert.Equal(t, "loc:"+loc.String(), LocationScope(loc).Token())
	assert.Equal(t, "region:"+region.String(), RegionScope(region).Token())

	// Tokens from distinct scopes never collide.
	assert.NotEqual(t, LocationScope(loc).Token(), LocationScope(uuid.New()).Token())
}

func TestDenialIsUniform(t *testing.T) {
	home := uuid.New()
	_, errAccount := Resolve(memberPrincipal(home), KindAccount, ActionRead, nil)
	_, errAudit := Resolve(memberPrincipal(home), KindAudit, ActionRead, nil)

	require.Error(t, errAccount)
	require.Error(t, errAudit)
	assert.True(t, errors.Is(errAccount, apperr.ErrDenied))
	assert.True(t, errors.Is(errAudit, apperr.ErrDenied))
}
