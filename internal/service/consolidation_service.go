package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/export"
	"github.com/noah-isme/supervision-portal-api/pkg/mailer"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type consolidationReportLister interface {
	ListByPeriod(ctx context.Context, family models.ReportFamily, periodKey string) ([]models.PeriodicReport, error)
}

type consolidationDocumentLister interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.RepositoryDocument, error)
}

type consolidationSchoolLister interface {
	List(ctx context.Context) ([]models.School, error)
}

type consolidationArtifactStorage interface {
	Read(locator string) ([]byte, error)
	Save(category storage.Category, filename string, data []byte) (string, error)
	Delete(locator string) error
	Path(locator string) string
}

type workbookBuilder interface {
	Build(sources []export.SheetSource) ([]byte, error)
}

var familyLabels = map[models.ReportFamily]string{
	models.FamilyAttendance:      "Attendance",
	models.FamilyCouncilMinutes:  "Council Minutes",
	models.FamilyQuarterlyReport: "Quarterly Report",
}

// ConsolidationService merges per-school artifacts into one aggregate workbook
// and dispatches it by email. The export is transient: it exists on disk only
// for the duration of the SMTP handoff.
type ConsolidationService struct {
	reports   consolidationReportLister
	documents consolidationDocumentLister
	schools   consolidationSchoolLister
	storage   consolidationArtifactStorage
	builder   workbookBuilder
	sender    mailer.Sender
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConsolidationService constructs the service. metrics may be nil.
func NewConsolidationService(
	reports consolidationReportLister,
	documents consolidationDocumentLister,
	schools consolidationSchoolLister,
	artifacts consolidationArtifactStorage,
	builder workbookBuilder,
	sender mailer.Sender,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ConsolidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ConsolidationService{
		reports:   reports,
		documents: documents,
		schools:   schools,
		storage:   artifacts,
		builder:   builder,
		sender:    sender,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// ConsolidateReports gathers one period's submissions across every school,
// merges them and mails the aggregate workbook. Admin only; an empty selection
// short-circuits before any artifact is read.
func (s *ConsolidationService) ConsolidateReports(ctx context.Context, family models.ReportFamily, req dto.ConsolidateRequest, actor *models.JWTClaims) (*dto.DispatchResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consolidation payload")
	}
	periodKey, periodLabel, err := resolvePeriod(family, req)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	records, err := s.reports.ListByPeriod(ctx, family, periodKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to gather reports")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoMatchingRecords,
			fmt.Sprintf("no %s submissions for %s", strings.ToLower(familyLabels[family]), periodLabel))
	}

	schoolNames, err := s.schoolNames(ctx)
	if err != nil {
		return nil, err
	}
	sources := make([]export.SheetSource, 0, len(records))
	for _, record := range records {
		name := schoolNames[record.SchoolID]
		if name == "" {
			name = record.SchoolID
		}
		sources = append(sources, s.sheetSource(name, record.ArtifactLocator, record.MimeType, record.ArtifactName))
	}

	subject := fmt.Sprintf("%s Consolidation — %s", familyLabels[family], periodLabel)
	body := fmt.Sprintf("Attached is the consolidated %s workbook for %s, covering %d submission(s).",
		strings.ToLower(familyLabels[family]), periodLabel, len(records))
	attachmentName := fmt.Sprintf("%s_%s.xlsx", sanitizeNamePart(string(family)), sanitizeNamePart(periodKey))

	sheets, err := s.dispatch(sources, subject, body, attachmentName, req.Recipients)
	if err != nil {
		return nil, err
	}
	return &dto.DispatchResult{
		Recipients: len(req.Recipients),
		Records:    len(records),
		Sheets:     sheets,
		Subject:    subject,
	}, nil
}

// ConsolidateDocuments merges an explicit set of repository documents and
// mails the aggregate workbook. Admin only.
func (s *ConsolidationService) ConsolidateDocuments(ctx context.Context, req dto.ConsolidateDocumentsRequest, actor *models.JWTClaims) (*dto.DispatchResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consolidation payload")
	}

	docs, err := s.documents.ListByIDs(ctx, req.DocumentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to gather documents")
	}
	if len(docs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoMatchingRecords, "no documents match the requested ids")
	}

	sources := make([]export.SheetSource, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, s.sheetSource(doc.Title, doc.ArtifactLocator, doc.ContentType, doc.ArtifactName))
	}

	now := time.Now().UTC()
	subject := fmt.Sprintf("Document Consolidation — %s", now.Format("2006-01-02"))
	body := fmt.Sprintf("Attached is the consolidated document workbook covering %d document(s).", len(docs))
	attachmentName := fmt.Sprintf("documents_%s.xlsx", now.Format("20060102"))

	sheets, err := s.dispatch(sources, subject, body, attachmentName, req.Recipients)
	if err != nil {
		return nil, err
	}
	return &dto.DispatchResult{
		Recipients: len(req.Recipients),
		Records:    len(docs),
		Sheets:     sheets,
		Subject:    subject,
	}, nil
}

// dispatch builds the aggregate workbook, stores it transiently, mails it and
// removes the transient file regardless of the send outcome.
func (s *ConsolidationService) dispatch(sources []export.SheetSource, subject, body, attachmentName string, recipients []string) (int, error) {
	workbook, err := s.builder.Build(sources)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build aggregate workbook")
	}
	locator, err := s.storage.Save(storage.CategoryExport, attachmentName, workbook)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to stage export")
	}
	defer func() {
		if err := s.storage.Delete(locator); err != nil {
			s.logger.Warn("failed to remove transient export", zap.Error(err), zap.String("locator", locator))
		}
	}()

	msg := mailer.Message{
		To:      recipients,
		Subject: subject,
		Body:    body,
		Attachments: []mailer.Attachment{
			{Path: s.storage.Path(locator), Name: attachmentName},
		},
	}
	if err := s.sender.Send(msg); err != nil {
		s.metrics.ObserveDispatch(false)
		s.logger.Error("consolidation dispatch failed", zap.Error(err), zap.String("subject", subject))
		return 0, appErrors.Wrap(err, appErrors.ErrDispatchFailed.Code, appErrors.ErrDispatchFailed.Status, appErrors.ErrDispatchFailed.Message)
	}
	s.metrics.ObserveDispatch(true)
	return len(sources), nil
}

func (s *ConsolidationService) sheetSource(name, locator, mimeType, artifactName string) export.SheetSource {
	src := export.SheetSource{Name: name, Label: artifactName}
	data, err := s.storage.Read(locator)
	if err != nil {
		s.logger.Warn("failed to read artifact for consolidation, emitting placeholder",
			zap.Error(err), zap.String("locator", locator))
		return src
	}
	if isSpreadsheetMime(mimeType) {
		src.Workbook = data
	}
	return src
}

func (s *ConsolidationService) schoolNames(ctx context.Context) (map[string]string, error) {
	schools, err := s.schools.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	names := make(map[string]string, len(schools))
	for _, school := range schools {
		names[school.ID] = school.Name
	}
	return names, nil
}

func resolvePeriod(family models.ReportFamily, req dto.ConsolidateRequest) (key, label string, err error) {
	switch family {
	case models.FamilyAttendance:
		if req.Date == "" {
			return "", "", fmt.Errorf("date is required")
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return "", "", fmt.Errorf("date must be YYYY-MM-DD")
		}
		key = models.AttendancePeriodKey(date)
		return key, key, nil
	case models.FamilyCouncilMinutes:
		key, err = models.MonthPeriodKey(req.Month, req.Year)
		if err != nil {
			return "", "", err
		}
		return key, fmt.Sprintf("%s %d", time.Month(req.Month), req.Year), nil
	case models.FamilyQuarterlyReport:
		key, err = models.QuarterPeriodKey(req.Quarter, req.Year)
		if err != nil {
			return "", "", err
		}
		return key, fmt.Sprintf("Q%d %d", req.Quarter, req.Year), nil
	default:
		return "", "", fmt.Errorf("unknown report family")
	}
}

func isSpreadsheetMime(mimeType string) bool {
	_, ok := spreadsheetMIMEs[strings.ToLower(mimeType)]
	return ok
}
