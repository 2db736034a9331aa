package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"platform/internal/service"
	"platform/pkg/response"
)

type MetricsHandler struct {
	dashboardService service.DashboardService
	authn            gin.HandlerFunc
}

func NewMetricsHandler(dashboardService service.DashboardService, authn gin.HandlerFunc) *MetricsHandler {
	return &MetricsHandler{dashboardService: dashboardService, authn: authn}
}

func (h *MetricsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/dashboard", h.authn, h.Dashboard)
}

// @Summary      Dashboard metrics
// @Description  KPIs, a dense daily trend and top-5 rankings over the requested range
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Param        range  query     string  false  "Range preset: today, last_7_days, last_30_days, last_90_days, custom (default today)"
// @Param        start  query     string  false  "Custom range start (YYYY-MM-DD)"
// @Param        end    query     string  false  "Custom range end (YYYY-MM-DD)"
// @Success      200    {object}  response.Response{data=model.DashboardResponse}
// @Failure      400    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Router       /api/dashboard [get]
func (h *MetricsHandler) Dashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	dashboard, err := h.dashboardService.ComputeDashboard(c.Request.Context(), p, c.Query("range"), c.Query("start"), c.Query("end"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}
