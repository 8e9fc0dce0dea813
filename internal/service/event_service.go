package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/repository"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/export"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter repository.EventListFilter) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

type eventArtifactStorage interface {
	SaveStream(category storage.Category, filename string, size int64, r io.Reader) (string, error)
	Delete(locator string) error
}

type calendarRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// EventImage carries an optional calendar entry illustration.
type EventImage struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

var eventImageMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

// EventService manages the shared event calendar. Mutations are admin only;
// every authenticated account may read.
type EventService struct {
	repo    eventStore
	storage eventArtifactStorage
	pdf     calendarRenderer
	logger  *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventStore, artifacts eventArtifactStorage, pdf calendarRenderer, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, storage: artifacts, pdf: pdf, logger: logger}
}

// Create inserts a calendar entry with an optional image.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest, image *EventImage, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if !models.ValidEventType(req.EventType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
		}
		if parsed.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date precedes start_date")
		}
		endDate = &parsed
	}

	event := &models.Event{
		Title:       title,
		Description: req.Description,
		EventType:   models.EventType(req.EventType),
		StartDate:   startDate,
		EndDate:     endDate,
		SchoolID:    normalizeOptional(req.SchoolID),
		CreatedBy:   actor.UserID,
	}
	if image != nil {
		locator, err := s.storeImage(image)
		if err != nil {
			return nil, err
		}
		event.ImageLocator = &locator
	}
	if err := s.repo.Create(ctx, event); err != nil {
		if event.ImageLocator != nil {
			if delErr := s.storage.Delete(*event.ImageLocator); delErr != nil {
				s.logger.Warn("failed to remove orphaned event image", zap.Error(delErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// List returns calendar entries visible to the actor. School accounts see
// global entries plus their own school's.
func (s *EventService) List(ctx context.Context, filter dto.EventFilter, actor *models.JWTClaims) ([]models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	repoFilter := repository.EventListFilter{Month: filter.Month, Year: filter.Year}
	if !actor.IsAdmin() {
		repoFilter.SchoolID = actor.SchoolID
	}
	events, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Get loads one entry, applying the same visibility rule as List.
func (s *EventService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !actor.IsAdmin() && event.SchoolID != nil && !actor.OwnsSchool(*event.SchoolID) {
		return nil, appErrors.ErrNotFound
	}
	return event, nil
}

// Update applies partial mutations to an entry. Admin only.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpdateEventRequest, image *EventImage, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
		}
		event.Title = title
	}
	if req.Description != nil {
		event.Description = req.Description
	}
	if req.EventType != nil {
		if !models.ValidEventType(*req.EventType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown event type")
		}
		event.EventType = models.EventType(*req.EventType)
	}
	if req.StartDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
		}
		event.StartDate = parsed
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			event.EndDate = nil
		} else {
			parsed, err := time.Parse("2006-01-02", *req.EndDate)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
			}
			event.EndDate = &parsed
		}
	}
	if event.EndDate != nil && event.EndDate.Before(event.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date precedes start_date")
	}
	if req.SchoolID != nil {
		event.SchoolID = normalizeOptional(req.SchoolID)
	}

	previousImage := event.ImageLocator
	switch {
	case image != nil:
		locator, err := s.storeImage(image)
		if err != nil {
			return nil, err
		}
		event.ImageLocator = &locator
	case req.ClearImage:
		event.ImageLocator = nil
	}

	if err := s.repo.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	if previousImage != nil && (event.ImageLocator == nil || *event.ImageLocator != *previousImage) {
		if err := s.storage.Delete(*previousImage); err != nil {
			s.logger.Warn("failed to release replaced event image", zap.Error(err), zap.String("locator", *previousImage))
		}
	}
	return event, nil
}

// Delete removes an entry and its image best-effort. Admin only.
func (s *EventService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	if event.ImageLocator != nil {
		if err := s.storage.Delete(*event.ImageLocator); err != nil {
			s.logger.Warn("failed to release event image", zap.Error(err), zap.String("locator", *event.ImageLocator))
		}
	}
	return nil
}

// RenderCalendarPDF builds a monthly calendar table for the admin.
func (s *EventService) RenderCalendarPDF(ctx context.Context, month, year int, actor *models.JWTClaims) ([]byte, string, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, "", appErrors.ErrForbidden
	}
	if month < 1 || month > 12 || year < 1 {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "month and year are required")
	}
	events, err := s.repo.List(ctx, repository.EventListFilter{Month: month, Year: year})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	rows := make([]map[string]string, 0, len(events))
	for _, ev := range events {
		end := ""
		if ev.EndDate != nil {
			end = ev.EndDate.Format("2006-01-02")
		}
		scope := "all schools"
		if ev.SchoolID != nil {
			scope = *ev.SchoolID
		}
		rows = append(rows, map[string]string{
			"Date":  ev.StartDate.Format("2006-01-02"),
			"End":   end,
			"Title": ev.Title,
			"Type":  string(ev.EventType),
			"Scope": scope,
		})
	}
	title := fmt.Sprintf("Event Calendar %04d-%02d", year, month)
	data := export.Dataset{Headers: []string{"Date", "End", "Title", "Type", "Scope"}, Rows: rows}
	pdf, err := s.pdf.Render(data, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
	}
	filename := fmt.Sprintf("calendar_%04d_%02d.pdf", year, month)
	return pdf, filename, nil
}

func (s *EventService) storeImage(image *EventImage) (string, error) {
	if image.Content == nil || image.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "image file is empty")
	}
	mimeType := normalizeMime(image.MimeType, image.Filename)
	if _, ok := eventImageMIMEs[mimeType]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "event image must be png, jpeg or webp")
	}
	filename := generateArtifactName("event", image.Filename)
	locator, err := s.storage.SaveStream(storage.CategoryEvent, filename, image.Size, image.Content)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", appErrors.ErrPayloadTooLarge
		}
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist event image")
	}
	return locator, nil
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
