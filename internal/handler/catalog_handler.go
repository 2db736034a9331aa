package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"platform/internal/service"
	"platform/pkg/pagination"
	"platform/pkg/response"
)

type CatalogHandler struct {
	catalogService service.CatalogService
	authn          gin.HandlerFunc
}

func NewCatalogHandler(catalogService service.CatalogService, authn gin.HandlerFunc) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, authn: authn}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	catalog := router.Group("/api/catalog", h.authn)
	{
		catalog.GET("/items", h.ListItems)
		catalog.GET("/items/:id", h.GetItem)
		catalog.POST("/items", h.CreateItem)
		catalog.PUT("/items/:id", h.UpdateItem)
		catalog.DELETE("/items/:id", h.DeleteItem)
	}
}

// @Summary      List catalog items
// @Description  Retrieves catalog items inside the caller's scope, admins may narrow by location/region
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Param        search       query     string  false  "Search by item name"
// @Param        location_id  query     string  false  "Admin narrowing filter"
// @Success      200  {object}  response.Response{data=object}
// @Failure      403  {object}  response.Response
// @Router       /api/catalog/items [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	requested, ok := requestedScope(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	items, total, err := h.catalogService.ListItems(c.Request.Context(), p, requested, params.Page, params.Limit, c.Query("search"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// @Summary      Get catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Catalog Item ID"
// @Success      200  {object}  response.Response{data=service.CatalogItemResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/catalog/items/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	item, err := h.catalogService.GetItem(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// @Summary      Create catalog item
// @Description  Creates a catalog item in the caller's location (admins must name one)
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCatalogItemRequest  true  "Create Catalog Item Payload"
// @Success      201      {object}  response.Response{data=service.CatalogItemResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/catalog/items [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.CreateCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.catalogService.CreateItem(c.Request.Context(), p, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// @Summary      Update catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Catalog Item ID"
// @Param        payload  body      service.UpdateCatalogItemRequest  true  "Update Catalog Item Payload"
// @Success      200      {object}  response.Response{data=service.CatalogItemResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/catalog/items/{id} [put]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.UpdateCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.catalogService.UpdateItem(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// @Summary      Delete catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Catalog Item ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/catalog/items/{id} [delete]
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.catalogService.DeleteItem(c.Request.Context(), p, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "catalog item deleted"}))
}
