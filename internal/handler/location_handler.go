package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"platform/internal/service"
	"platform/pkg/pagination"
	"platform/pkg/response"
)

type LocationHandler struct {
	locationService service.LocationService
	authn           gin.HandlerFunc
}

func NewLocationHandler(locationService service.LocationService, authn gin.HandlerFunc) *LocationHandler {
	return &LocationHandler{locationService: locationService, authn: authn}
}

func (h *LocationHandler) RegisterRoutes(router *gin.RouterGroup) {
	locations := router.Group("/api/locations", h.authn)
	{
		locations.GET("", h.List)
		locations.GET("/:id", h.Get)
		locations.POST("", h.Create)
		locations.PUT("/:id", h.Update)
		locations.DELETE("/:id", h.Delete)
	}
	router.GET("/api/regions", h.authn, h.ListRegions)
	router.POST("/api/regions", h.authn, h.CreateRegion)
}

// @Summary      List locations
// @Tags         locations
// @Security     BearerAuth
// @Produce      json
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Param        region_id  query     string  false  "Narrow to one region"
// @Success      200  {object}  response.Response{data=object}
// @Failure      403  {object}  response.Response
// @Router       /api/locations [get]
func (h *LocationHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	requested, ok := requestedScope(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	locations, total, err := h.locationService.List(c.Request.Context(), p, requested, params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"locations": locations,
		"total":     total,
		"page":      params.Page,
		"limit":     params.Limit,
	}))
}

// @Summary      Get location
// @Tags         locations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Location ID"
// @Success      200  {object}  response.Response{data=service.LocationResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/locations/{id} [get]
func (h *LocationHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	loc, err := h.locationService.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, loc))
}

// @Summary      Create location
// @Tags         locations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateLocationRequest  true  "Create Location Payload"
// @Success      201      {object}  response.Response{data=service.LocationResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/locations [post]
func (h *LocationHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	loc, err := h.locationService.Create(c.Request.Context(), p, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, loc))
}

// @Summary      Update location
// @Tags         locations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Location ID"
// @Param        payload  body      service.UpdateLocationRequest  true  "Update Location Payload"
// @Success      200      {object}  response.Response{data=service.LocationResponse}
// @Failure      403      {object}  response.Response
// @Router       /api/locations/{id} [put]
func (h *LocationHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	loc, err := h.locationService.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, loc))
}

// @Summary      Delete location
// @Tags         locations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Location ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/locations/{id} [delete]
func (h *LocationHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.locationService.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]string{"message": "Location deleted"}))
}

// @Summary      List regions
// @Description  Reference data, readable by every authenticated role
// @Tags         locations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/regions [get]
func (h *LocationHandler) ListRegions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	regions, err := h.locationService.ListRegions(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{"regions": regions}))
}

// @Summary      Create region
// @Description  Reference data, writable by admins only
// @Tags         locations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRegionRequest  true  "Create Region Payload"
// @Success      201      {object}  response.Response{data=model.Region}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/regions [post]
func (h *LocationHandler) CreateRegion(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	region, err := h.locationService.CreateRegion(c.Request.Context(), p, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, region))
}
