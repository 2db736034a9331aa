package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"platform/internal/auth"
	"platform/pkg/response"
)

// principal pulls the authenticated principal the middleware stored, or
// aborts. Handlers behind RequirePrincipal can rely on it being present.
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return auth.Principal{}, false
	}
	return p, true
}

// requestedScope builds the caller's voluntary narrowing filter from query
// parameters. Admins may narrow themselves; for everyone else the resolver
// overrides whatever arrives here.
func requestedScope(c *gin.Context) (*auth.ScopeFilter, bool) {
	if raw := c.Query("location_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid location_id filter"))
			return nil, false
		}
		f := auth.LocationScope(id)
		return &f, true
	}
	if raw := c.Query("region_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid region_id filter"))
			return nil, false
		}
		f := auth.RegionScope(id)
		return &f, true
	}
	return nil, true
}

// fail writes the taxonomy-mapped error response.
func fail(c *gin.Context, err error) {
	status, body := response.FromError(err)
	c.JSON(status, body)
}
