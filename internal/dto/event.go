package dto

// CreateEventRequest carries the multipart fields of a calendar entry. The
// image file part, when present, travels separately.
type CreateEventRequest struct {
	Title       string  `form:"title" validate:"required"`
	Description *string `form:"description"`
	EventType   string  `form:"event_type" validate:"required"`
	StartDate   string  `form:"start_date" validate:"required"`
	EndDate     *string `form:"end_date"`
	SchoolID    *string `form:"school_id"`
}

// UpdateEventRequest holds partial mutations; nil fields are left untouched.
type UpdateEventRequest struct {
	Title       *string `form:"title"`
	Description *string `form:"description"`
	EventType   *string `form:"event_type"`
	StartDate   *string `form:"start_date"`
	EndDate     *string `form:"end_date"`
	SchoolID    *string `form:"school_id"`
	ClearImage  bool    `form:"clear_image"`
}

// EventFilter scopes calendar listings.
type EventFilter struct {
	Month int `form:"month"`
	Year  int `form:"year"`
}
