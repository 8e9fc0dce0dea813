package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/service"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/response"
)

type documentService interface {
	Create(ctx context.Context, req dto.CreateDocumentRequest, upload service.DocumentUpload, actor *models.JWTClaims) (*models.RepositoryDocument, error)
	List(ctx context.Context, actor *models.JWTClaims) ([]dto.DocumentResponse, error)
	Download(ctx context.Context, id, token string) (*service.DocumentDownload, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

type documentConsolidator interface {
	ConsolidateDocuments(ctx context.Context, req dto.ConsolidateDocumentsRequest, actor *models.JWTClaims) (*dto.DispatchResult, error)
}

// DocumentHandler manages the shared document repository endpoints.
type DocumentHandler struct {
	service      documentService
	consolidator documentConsolidator
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService, consolidator documentConsolidator) *DocumentHandler {
	return &DocumentHandler{service: service, consolidator: consolidator}
}

// List godoc
// @Summary List repository documents visible to the caller
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, docs)
}

// Create godoc
// @Summary Upload a repository document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param allowed_school_ids formData string false "Comma-separated allow-list (empty = all schools)"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
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

	upload := service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	doc, err := h.service.Create(c.Request.Context(), req, upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Download godoc
// @Summary Download a document via its signed token
// @Tags Documents
// @Produce application/octet-stream
// @Param id path string true "Document id"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.Download(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, download.Filename))
	c.Header("Content-Type", download.ContentType)
	c.Header("Content-Length", fmt.Sprintf("%d", download.SizeBytes))
	http.ServeContent(c.Writer, c.Request, download.Filename, modTimeOf(download.File), download.File)
}

// Delete godoc
// @Summary Delete a repository document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document id"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// SendEmail godoc
// @Summary Consolidate selected documents and email the workbook
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ConsolidateDocumentsRequest true "Document ids and recipients"
// @Success 200 {object} response.Envelope
// @Router /documents/send-email [post]
func (h *DocumentHandler) SendEmail(c *gin.Context) {
	var req dto.ConsolidateDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid consolidation payload"))
		return
	}
	result, err := h.consolidator.ConsolidateDocuments(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
