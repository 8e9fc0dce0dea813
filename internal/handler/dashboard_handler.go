package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context, month, year int, actor *models.JWTClaims) (*dto.DashboardResponse, error)
}

// DashboardHandler serves the submission overview.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Overview godoc
// @Summary Per-school submission counts for one month
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param month query int false "Month (defaults to current)"
// @Param year query int false "Year (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	month, _ := strconv.Atoi(c.Query("month"))
	year, _ := strconv.Atoi(c.Query("year"))
	overview, err := h.service.Overview(c.Request.Context(), month, year, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}
