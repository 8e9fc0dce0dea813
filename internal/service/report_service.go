package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type reportStore interface {
	Upsert(ctx context.Context, report *models.PeriodicReport) (*models.PeriodicReport, error)
	FindByNaturalKey(ctx context.Context, family models.ReportFamily, schoolID, periodKey string) (*models.PeriodicReport, error)
	GetByID(ctx context.Context, id string) (*models.PeriodicReport, error)
	List(ctx context.Context, family models.ReportFamily, schoolID string) ([]models.PeriodicReport, error)
	Delete(ctx context.Context, id string) error
}

type reportArtifactStorage interface {
	SaveStream(category storage.Category, filename string, size int64, r io.Reader) (string, error)
	Delete(locator string) error
}

// ReportUpload carries the multipart file of a periodic report submission.
type ReportUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// familySpec parameterizes the shared upload workflow per report family:
// storage category, accepted MIME types and how the period fields normalize
// into a period key.
type familySpec struct {
	category     storage.Category
	allowedMIMEs map[string]struct{}
	periodKey    func(req dto.UploadReportRequest) (string, error)
}

var (
	spreadsheetMIMEs = map[string]struct{}{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
		"application/vnd.ms-excel":                                          {},
	}
	documentMIMEs = map[string]struct{}{
		"application/pdf": {},
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
		"application/vnd.ms-excel":                                                {},
	}

	familySpecs = map[models.ReportFamily]familySpec{
		models.FamilyAttendance: {
			category:     storage.CategoryAttendance,
			allowedMIMEs: spreadsheetMIMEs,
			periodKey: func(req dto.UploadReportRequest) (string, error) {
				if req.Date == "" {
					return "", fmt.Errorf("date is required")
				}
				date, err := time.Parse("2006-01-02", req.Date)
				if err != nil {
					return "", fmt.Errorf("date must be YYYY-MM-DD")
				}
				return models.AttendancePeriodKey(date), nil
			},
		},
		models.FamilyCouncilMinutes: {
			category:     storage.CategoryMinutes,
			allowedMIMEs: documentMIMEs,
			periodKey: func(req dto.UploadReportRequest) (string, error) {
				return models.MonthPeriodKey(req.Month, req.Year)
			},
		},
		models.FamilyQuarterlyReport: {
			category:     storage.CategoryQuarterly,
			allowedMIMEs: documentMIMEs,
			periodKey: func(req dto.UploadReportRequest) (string, error) {
				return models.QuarterPeriodKey(req.Quarter, req.Year)
			},
		},
	}
)

// ReportService handles the periodic report lifecycle for all three families.
type ReportService struct {
	repo    reportStore
	storage reportArtifactStorage
	metrics *MetricsService
	logger  *zap.Logger
}

// NewReportService constructs the service. metrics may be nil.
func NewReportService(repo reportStore, artifacts reportArtifactStorage, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, storage: artifacts, metrics: metrics, logger: logger}
}

// Upload validates, stores and records a periodic report submission. A resend
// for the same period replaces the previous row; the superseded artifact is
// released best-effort.
func (s *ReportService) Upload(ctx context.Context, family models.ReportFamily, req dto.UploadReportRequest, upload ReportUpload, actor *models.JWTClaims) (*models.PeriodicReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSchool || actor.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school accounts submit periodic reports")
	}
	spec, ok := familySpecs[family]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report family")
	}
	periodKey, err := spec.periodKey(req)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	mimeType := normalizeMime(upload.MimeType, upload.Filename)
	if _, allowed := spec.allowedMIMEs[mimeType]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed for this report family")
	}

	var previous *models.PeriodicReport
	if found, err := s.repo.FindByNaturalKey(ctx, family, actor.SchoolID, periodKey); err == nil {
		previous = found
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing report")
	}

	filename := generateArtifactName(string(family), actor.SchoolID, periodKey, upload.Filename)
	locator, err := s.storage.SaveStream(spec.category, filename, upload.Size, upload.Content)
	if err != nil {
		s.metrics.ObserveUpload(string(spec.category), false)
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.ErrPayloadTooLarge
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist report artifact")
	}

	stored, err := s.repo.Upsert(ctx, &models.PeriodicReport{
		Family:          family,
		SchoolID:        actor.SchoolID,
		PeriodKey:       periodKey,
		ArtifactLocator: locator,
		ArtifactName:    upload.Filename,
		MimeType:        mimeType,
		SizeBytes:       upload.Size,
		UploadedBy:      actor.UserID,
	})
	if err != nil {
		s.metrics.ObserveUpload(string(spec.category), false)
		if delErr := s.storage.Delete(locator); delErr != nil {
			s.logger.Warn("failed to remove orphaned report artifact", zap.Error(delErr), zap.String("locator", locator))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record report metadata")
	}
	s.metrics.ObserveUpload(string(spec.category), true)

	if previous != nil && previous.ArtifactLocator != stored.ArtifactLocator {
		if err := s.storage.Delete(previous.ArtifactLocator); err != nil {
			s.logger.Warn("failed to release superseded report artifact", zap.Error(err), zap.String("locator", previous.ArtifactLocator))
		}
	}
	return stored, nil
}

// List returns a family's rows scoped by the actor: schools see only their own
// submissions, the admin sees everything with an optional school filter.
func (s *ReportService) List(ctx context.Context, family models.ReportFamily, schoolFilter string, actor *models.JWTClaims) ([]models.PeriodicReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, ok := familySpecs[family]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown report family")
	}
	scope := schoolFilter
	if !actor.IsAdmin() {
		if actor.SchoolID == "" {
			return nil, appErrors.ErrForbidden
		}
		scope = actor.SchoolID
	}
	reports, err := s.repo.List(ctx, family, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	if reports == nil {
		reports = []models.PeriodicReport{}
	}
	return reports, nil
}

// Delete removes a report row and releases its artifact best-effort. Allowed
// for the admin and the owning school only.
func (s *ReportService) Delete(ctx context.Context, family models.ReportFamily, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if report.Family != family {
		return appErrors.ErrNotFound
	}
	if !actor.IsAdmin() && !actor.OwnsSchool(report.SchoolID) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	if err := s.storage.Delete(report.ArtifactLocator); err != nil {
		s.logger.Warn("failed to release report artifact", zap.Error(err), zap.String("locator", report.ArtifactLocator))
	}
	return nil
}

func normalizeMime(declared, filename string) string {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return mt
	}
}

func generateArtifactName(parts ...string) string {
	original := parts[len(parts)-1]
	ext := strings.ToLower(filepath.Ext(original))
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		buf = []byte{0, 0, 0, 0}
	}
	cleaned := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		cleaned = append(cleaned, sanitizeNamePart(p))
	}
	return fmt.Sprintf("%s_%s%s", strings.Join(cleaned, "_"), hex.EncodeToString(buf), ext)
}

func sanitizeNamePart(p string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(p) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
