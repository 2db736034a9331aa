package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"platform/internal/service"
	"platform/pkg/pagination"
	"platform/pkg/response"
)

type AuditHandler struct {
	auditService service.AuditService
	authn        gin.HandlerFunc
}

func NewAuditHandler(auditService service.AuditService, authn gin.HandlerFunc) *AuditHandler {
	return &AuditHandler{auditService: auditService, authn: authn}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/audit", h.authn, h.List)
}

// @Summary      List audit logs
// @Description  Authorization decision records, newest first, admin only
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      403    {object}  response.Response
// @Router       /api/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p, params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}
