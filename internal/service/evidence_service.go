package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type evidenceStore interface {
	Create(ctx context.Context, evidence *models.Evidence) error
	GetByID(ctx context.Context, id string) (*models.Evidence, error)
	List(ctx context.Context, schoolID string) ([]models.Evidence, error)
	Delete(ctx context.Context, id string) error
}

type evidenceArtifactStorage interface {
	SaveStream(category storage.Category, filename string, size int64, r io.Reader) (string, error)
	Delete(locator string) error
}

// EvidencePhoto is one photo of an evidence upload.
type EvidencePhoto struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

var evidencePhotoMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

// EvidenceService manages photographic evidence records. Each record owns all
// of its photos: they are stored together and removed together.
type EvidenceService struct {
	repo    evidenceStore
	storage evidenceArtifactStorage
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEvidenceService constructs the service. metrics may be nil.
func NewEvidenceService(repo evidenceStore, artifacts evidenceArtifactStorage, metrics *MetricsService, logger *zap.Logger) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{repo: repo, storage: artifacts, metrics: metrics, logger: logger}
}

// Create validates and stores 1..10 photos, then records the evidence row.
// The photo count and every photo's type are checked before the first store
// call; a mid-batch failure rolls the already stored photos back.
func (s *EvidenceService) Create(ctx context.Context, req dto.CreateEvidenceRequest, photos []EvidencePhoto, actor *models.JWTClaims) (*models.Evidence, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	schoolID := actor.SchoolID
	if actor.IsAdmin() {
		schoolID = strings.TrimSpace(req.SchoolID)
		if schoolID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "school_id is required for admin uploads")
		}
	} else if actor.Role != models.RoleSchool || schoolID == "" {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if len(photos) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one photo is required")
	}
	if len(photos) > models.MaxEvidenceArtifacts {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("at most %d photos per evidence record", models.MaxEvidenceArtifacts))
	}
	contentTypes := make([]string, len(photos))
	for i, photo := range photos {
		if photo.Content == nil || photo.Size <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "photo file is empty")
		}
		mimeType := normalizeMime(photo.MimeType, photo.Filename)
		if _, ok := evidencePhotoMIMEs[mimeType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "evidence photos must be png, jpeg or webp")
		}
		contentTypes[i] = mimeType
	}

	locators := make([]string, 0, len(photos))
	rollback := func() {
		for _, locator := range locators {
			if err := s.storage.Delete(locator); err != nil {
				s.logger.Warn("failed to roll back evidence photo", zap.Error(err), zap.String("locator", locator))
			}
		}
	}
	for _, photo := range photos {
		filename := generateArtifactName("evidence", schoolID, photo.Filename)
		locator, err := s.storage.SaveStream(storage.CategoryEvidence, filename, photo.Size, photo.Content)
		if err != nil {
			s.metrics.ObserveUpload(string(storage.CategoryEvidence), false)
			rollback()
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, appErrors.ErrPayloadTooLarge
			}
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist evidence photo")
		}
		locators = append(locators, locator)
	}

	evidence := &models.Evidence{
		SchoolID:     schoolID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Locators:     pq.StringArray(locators),
		ContentTypes: pq.StringArray(contentTypes),
		UploadedBy:   actor.UserID,
	}
	if err := s.repo.Create(ctx, evidence); err != nil {
		s.metrics.ObserveUpload(string(storage.CategoryEvidence), false)
		rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record evidence metadata")
	}
	s.metrics.ObserveUpload(string(storage.CategoryEvidence), true)
	return evidence, nil
}

// List returns evidence records: the admin sees every school, a school its own.
func (s *EvidenceService) List(ctx context.Context, actor *models.JWTClaims) ([]models.Evidence, error) {
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
	records, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evidence")
	}
	if records == nil {
		records = []models.Evidence{}
	}
	return records, nil
}

// Delete removes a record and all of its photos. Allowed for the admin and
// the owning school.
func (s *EvidenceService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	evidence, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	if !actor.IsAdmin() && !actor.OwnsSchool(evidence.SchoolID) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evidence")
	}
	for _, locator := range evidence.Locators {
		if err := s.storage.Delete(locator); err != nil {
			s.logger.Warn("failed to release evidence photo", zap.Error(err), zap.String("locator", locator))
		}
	}
	return nil
}
