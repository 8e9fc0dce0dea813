package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/service"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/response"
)

type evidenceService interface {
	Create(ctx context.Context, req dto.CreateEvidenceRequest, photos []service.EvidencePhoto, actor *models.JWTClaims) (*models.Evidence, error)
	List(ctx context.Context, actor *models.JWTClaims) ([]models.Evidence, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// EvidenceHandler manages photographic evidence endpoints.
type EvidenceHandler struct {
	service evidenceService
}

// NewEvidenceHandler constructs the handler.
func NewEvidenceHandler(service evidenceService) *EvidenceHandler {
	return &EvidenceHandler{service: service}
}

// List godoc
// @Summary List evidence records
// @Tags Evidence
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /evidence [get]
func (h *EvidenceHandler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Create godoc
// @Summary Upload an evidence record with 1-10 photos
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param school_id formData string false "Target school (admin only)"
// @Param photos formData file true "Photos"
// @Success 201 {object} response.Envelope
// @Router /evidence [post]
func (h *EvidenceHandler) Create(c *gin.Context) {
	var req dto.CreateEvidenceRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid evidence payload"))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form required"))
		return
	}
	fileHeaders := form.File["photos"]
	photos := make([]service.EvidencePhoto, 0, len(fileHeaders))
	closers := make([]func() error, 0, len(fileHeaders))
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()
	for _, fileHeader := range fileHeaders {
		src, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open photo"))
			return
		}
		closers = append(closers, src.Close)
		photos = append(photos, service.EvidencePhoto{
			Filename: fileHeader.Filename,
			Size:     fileHeader.Size,
			MimeType: fileHeader.Header.Get("Content-Type"),
			Content:  src,
		})
	}

	evidence, err := h.service.Create(c.Request.Context(), req, photos, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, evidence)
}

// Delete godoc
// @Summary Delete an evidence record and all of its photos
// @Tags Evidence
// @Produce json
// @Security BearerAuth
// @Param id path string true "Evidence id"
// @Success 200 {object} response.Envelope
// @Router /evidence/{id} [delete]
func (h *EvidenceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
