package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/service"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/response"
)

type reportService interface {
	Upload(ctx context.Context, family models.ReportFamily, req dto.UploadReportRequest, upload service.ReportUpload, actor *models.JWTClaims) (*models.PeriodicReport, error)
	List(ctx context.Context, family models.ReportFamily, schoolFilter string, actor *models.JWTClaims) ([]models.PeriodicReport, error)
	Delete(ctx context.Context, family models.ReportFamily, id string, actor *models.JWTClaims) error
}

type reportConsolidator interface {
	ConsolidateReports(ctx context.Context, family models.ReportFamily, req dto.ConsolidateRequest, actor *models.JWTClaims) (*dto.DispatchResult, error)
}

// ReportHandler serves the three periodic report families under a shared
// :family route segment.
type ReportHandler struct {
	service      reportService
	consolidator reportConsolidator
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService, consolidator reportConsolidator) *ReportHandler {
	return &ReportHandler{service: service, consolidator: consolidator}
}

func parseFamilyParam(c *gin.Context) (models.ReportFamily, bool) {
	family, ok := models.ParseReportFamily(c.Param("family"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown report family"))
		return "", false
	}
	return family, true
}

// List godoc
// @Summary List periodic reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param family path string true "Report family" Enums(attendance, council-minutes, quarterly)
// @Param school query string false "School filter (admin only)"
// @Success 200 {object} response.Envelope
// @Router /reports/{family} [get]
func (h *ReportHandler) List(c *gin.Context) {
	family, ok := parseFamilyParam(c)
	if !ok {
		return
	}
	reports, err := h.service.List(c.Request.Context(), family,
		strings.TrimSpace(c.Query("school")), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reports)
}

// Upload godoc
// @Summary Submit a periodic report
// @Tags Reports
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param family path string true "Report family" Enums(attendance, council-minutes, quarterly)
// @Param date formData string false "Attendance date (YYYY-MM-DD)"
// @Param month formData int false "Council minutes month"
// @Param year formData int false "Minutes/quarterly year"
// @Param quarter formData int false "Quarter (1-4)"
// @Param file formData file true "Report artifact"
// @Success 201 {object} response.Envelope
// @Router /reports/{family} [post]
func (h *ReportHandler) Upload(c *gin.Context) {
	family, ok := parseFamilyParam(c)
	if !ok {
		return
	}
	var req dto.UploadReportRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	upload := service.ReportUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	report, err := h.service.Upload(c.Request.Context(), family, req, upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Delete godoc
// @Summary Delete a periodic report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param family path string true "Report family" Enums(attendance, council-minutes, quarterly)
// @Param id path string true "Report id"
// @Success 200 {object} response.Envelope
// @Router /reports/{family}/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	family, ok := parseFamilyParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), family, c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// SendEmail godoc
// @Summary Consolidate one period across schools and email the workbook
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param family path string true "Report family" Enums(attendance, council-minutes, quarterly)
// @Param payload body dto.ConsolidateRequest true "Selection and recipients"
// @Success 200 {object} response.Envelope
// @Router /reports/{family}/send-email [post]
func (h *ReportHandler) SendEmail(c *gin.Context) {
	family, ok := parseFamilyParam(c)
	if !ok {
		return
	}
	var req dto.ConsolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid consolidation payload"))
		return
	}
	result, err := h.consolidator.ConsolidateReports(c.Request.Context(), family, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
