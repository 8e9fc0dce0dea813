package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/service"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, req dto.CreateEventRequest, image *service.EventImage, actor *models.JWTClaims) (*models.Event, error)
	List(ctx context.Context, filter dto.EventFilter, actor *models.JWTClaims) ([]models.Event, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error)
	Update(ctx context.Context, id string, req dto.UpdateEventRequest, image *service.EventImage, actor *models.JWTClaims) (*models.Event, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	RenderCalendarPDF(ctx context.Context, month, year int, actor *models.JWTClaims) ([]byte, string, error)
}

// EventHandler manages calendar endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

func eventImageFromForm(c *gin.Context) (*service.EventImage, func(), error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, func() {}, nil
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image")
	}
	image := &service.EventImage{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	return image, func() { _ = src.Close() }, nil
}

// List godoc
// @Summary List calendar events
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param month query int false "Month filter"
// @Param year query int false "Year filter"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var filter dto.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event filter"))
		return
	}
	events, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events)
}

// Get godoc
// @Summary Get one calendar event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Create godoc
// @Summary Create a calendar event
// @Tags Events
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param event_type formData string true "Event type"
// @Param start_date formData string true "Start date (YYYY-MM-DD)"
// @Param end_date formData string false "End date"
// @Param school_id formData string false "Restrict to one school"
// @Param image formData file false "Illustration"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	image, closeImage, err := eventImageFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeImage()

	event, err := h.service.Create(c.Request.Context(), req, image, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update a calendar event
// @Tags Events
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	image, closeImage, err := eventImageFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeImage()

	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req, image, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Delete godoc
// @Summary Delete a calendar event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// CalendarPDF godoc
// @Summary Export the monthly calendar as PDF
// @Tags Events
// @Produce application/pdf
// @Security BearerAuth
// @Param month query int true "Month"
// @Param year query int true "Year"
// @Success 200 {file} binary
// @Router /events/calendar.pdf [get]
func (h *EventHandler) CalendarPDF(c *gin.Context) {
	month, _ := strconv.Atoi(c.Query("month"))
	year, _ := strconv.Atoi(c.Query("year"))
	pdf, filename, err := h.service.RenderCalendarPDF(c.Request.Context(), month, year, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
