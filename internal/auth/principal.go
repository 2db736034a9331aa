package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"platform/internal/model"
)

// Principal is the authenticated actor behind one request. It is resolved
// fresh from the users table on every request and never cached across
// requests, so a role change or deactivation takes effect immediately.
type Principal struct {
	ID         uuid.UUID
	Role       string
	LocationID *uuid.UUID
	RegionID   *uuid.UUID
	Active     bool
}

// FromUser builds a Principal from a freshly loaded user row.
func FromUser(u *model.User) Principal {
	return Principal{
		ID:         u.ID,
		Role:       u.Role,
		LocationID: u.LocationID,
		RegionID:   u.RegionID,
		Active:     u.Active,
	}
}

func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

const principalKey = "principal"

// SetPrincipal stores the request's principal in the gin context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom extracts the principal the authentication middleware stored.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
