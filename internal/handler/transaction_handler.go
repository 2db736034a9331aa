package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"platform/internal/service"
	"platform/pkg/pagination"
	"platform/pkg/response"
)

type TransactionHandler struct {
	transactionService service.TransactionService
	authn              gin.HandlerFunc
}

func NewTransactionHandler(transactionService service.TransactionService, authn gin.HandlerFunc) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, authn: authn}
}

func (h *TransactionHandler) RegisterRoutes(router *gin.RouterGroup) {
	txs := router.Group("/api/transactions", h.authn)
	{
		txs.GET("", h.List)
		txs.GET("/:id", h.Get)
		txs.POST("", h.Create)
		txs.POST("/:id/items", h.AddItem)
		txs.PATCH("/:id/status", h.UpdateStatus)
	}
}

// @Summary      List transactions
// @Tags         transactions
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Param        status       query     string  false  "Filter by status"
// @Param        location_id  query     string  false  "Admin narrowing filter"
// @Success      200  {object}  response.Response{data=object}
// @Failure      403  {object}  response.Response
// @Router       /api/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	requested, ok := requestedScope(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	txs, total, err := h.transactionService.List(c.Request.Context(), p, requested, params.Page, params.Limit, c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"page":         params.Page,
		"limit":        params.Limit,
	}))
}

// @Summary      Get transaction
// @Tags         transactions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Transaction ID"
// @Success      200  {object}  response.Response{data=service.TransactionResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	tx, err := h.transactionService.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

// @Summary      Create transaction
// @Description  Creates a PENDING transaction with line items priced from the catalog
// @Tags         transactions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateTransactionRequest  true  "Create Transaction Payload"
// @Success      201      {object}  response.Response{data=service.TransactionResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.transactionService.Create(c.Request.Context(), p, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// @Summary      Add transaction item
// @Description  Appends a line item to a PENDING transaction; members only on their own
// @Tags         transactions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Transaction ID"
// @Param        payload  body      service.TransactionItemRequest  true  "Line Item Payload"
// @Success      200      {object}  response.Response{data=service.TransactionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response  "Transaction no longer PENDING"
// @Router       /api/transactions/{id}/items [post]
func (h *TransactionHandler) AddItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.TransactionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.transactionService.AddItem(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}

// @Summary      Update transaction status
// @Description  Applies one state-machine transition; invalid moves return 409 with the current state
// @Tags         transactions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                                  true  "Transaction ID"
// @Param        payload  body      service.UpdateTransactionStatusRequest  true  "Status Payload"
// @Success      200      {object}  response.Response{data=service.TransactionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/transactions/{id}/status [patch]
func (h *TransactionHandler) UpdateStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req service.UpdateTransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tx, err := h.transactionService.UpdateStatus(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tx))
}
