package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.RepositoryDocument) error
	GetByID(ctx context.Context, id string) (*models.RepositoryDocument, error)
	List(ctx context.Context, schoolID string) ([]models.RepositoryDocument, error)
	Delete(ctx context.Context, id string) error
}

type documentArtifactStorage interface {
	SaveStream(category storage.Category, filename string, size int64, r io.Reader) (string, error)
	Open(locator string) (*os.File, error)
	Delete(locator string) error
}

type documentURLSigner interface {
	Generate(documentID, locator string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (documentID, locator string, expiresAt time.Time, err error)
}

// DocumentUpload carries the file of a repository document submission.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// DocumentDownload bundles an open artifact handle with response metadata.
type DocumentDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
}

var documentUploadMIMEs = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"application/vnd.ms-excel":                                                {},
	"image/png":  {},
	"image/jpeg": {},
}

// DocumentServiceConfig holds URL composition parameters.
type DocumentServiceConfig struct {
	APIPrefix string
}

// DocumentService manages the shared document repository with allow-list
// visibility. Mutations are admin only.
type DocumentService struct {
	repo    documentStore
	storage documentArtifactStorage
	signer  documentURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     DocumentServiceConfig
}

// NewDocumentService constructs the service. metrics may be nil.
func NewDocumentService(repo documentStore, artifacts documentArtifactStorage, signer documentURLSigner, metrics *MetricsService, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &DocumentService{repo: repo, storage: artifacts, signer: signer, metrics: metrics, logger: logger, cfg: cfg}
}

// Create stores a document artifact and records its metadata. Admin only.
func (s *DocumentService) Create(ctx context.Context, req dto.CreateDocumentRequest, upload DocumentUpload, actor *models.JWTClaims) (*models.RepositoryDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	mimeType := normalizeMime(upload.MimeType, upload.Filename)
	if _, ok := documentUploadMIMEs[mimeType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document file type not allowed")
	}

	filename := generateArtifactName("doc", upload.Filename)
	locator, err := s.storage.SaveStream(storage.CategoryDocument, filename, upload.Size, upload.Content)
	if err != nil {
		s.metrics.ObserveUpload(string(storage.CategoryDocument), false)
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.ErrPayloadTooLarge
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist document artifact")
	}

	doc := &models.RepositoryDocument{
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		ArtifactLocator:  locator,
		ArtifactName:     upload.Filename,
		ContentType:      mimeType,
		SizeBytes:        upload.Size,
		UploadedBy:       actor.UserID,
		AllowedSchoolIDs: pq.StringArray(splitIDList(req.AllowedSchoolIDs)),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		s.metrics.ObserveUpload(string(storage.CategoryDocument), false)
		if delErr := s.storage.Delete(locator); delErr != nil {
			s.logger.Warn("failed to remove orphaned document artifact", zap.Error(delErr), zap.String("locator", locator))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record document metadata")
	}
	s.metrics.ObserveUpload(string(storage.CategoryDocument), true)
	return doc, nil
}

// List returns documents visible to the actor, each decorated with a signed
// download URL. The allow-list is evaluated here, at read time.
func (s *DocumentService) List(ctx context.Context, actor *models.JWTClaims) ([]dto.DocumentResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	scope := ""
	if !actor.IsAdmin() {
		if actor.SchoolID == "" {
			return nil, appErrors.ErrForbidden
		}
		scope = actor.SchoolID
	}
	docs, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	responses := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		responses = append(responses, s.toResponse(&docs[i]))
	}
	return responses, nil
}

// Get loads one document enforcing the allow-list for school actors.
func (s *DocumentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RepositoryDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if !actor.IsAdmin() && !doc.VisibleTo(actor.SchoolID) {
		return nil, appErrors.ErrNotFound
	}
	return doc, nil
}

// Download validates the signed token and opens the referenced artifact. The
// token itself carries the authorization that was checked when it was issued.
func (s *DocumentService) Download(ctx context.Context, id, token string) (*DocumentDownload, error) {
	documentID, locator, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if documentID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match document")
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.ArtifactLocator != locator {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token references a stale artifact")
	}
	file, err := s.storage.Open(doc.ArtifactLocator)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open document artifact")
	}
	return &DocumentDownload{
		File:        file,
		Filename:    doc.ArtifactName,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
	}, nil
}

// Delete removes a document and releases its artifact best-effort. Admin only.
func (s *DocumentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.storage.Delete(doc.ArtifactLocator); err != nil {
		s.logger.Warn("failed to release document artifact", zap.Error(err), zap.String("locator", doc.ArtifactLocator))
	}
	return nil
}

func (s *DocumentService) toResponse(doc *models.RepositoryDocument) dto.DocumentResponse {
	resp := dto.DocumentResponse{
		ID:               doc.ID,
		Title:            doc.Title,
		Description:      doc.Description,
		ArtifactName:     doc.ArtifactName,
		ContentType:      doc.ContentType,
		SizeBytes:        doc.SizeBytes,
		AllowedSchoolIDs: append([]string{}, doc.AllowedSchoolIDs...),
		CreatedAt:        doc.CreatedAt.UTC().Format(time.RFC3339),
	}
	if s.signer != nil {
		if token, _, err := s.signer.Generate(doc.ID, doc.ArtifactLocator); err == nil {
			base := strings.TrimRight(s.cfg.APIPrefix, "/")
			resp.DownloadURL = fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token)
		} else {
			s.logger.Warn("failed to sign document download url", zap.Error(err), zap.String("document_id", doc.ID))
		}
	}
	return resp
}

func splitIDList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
