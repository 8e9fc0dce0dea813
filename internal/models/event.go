package models

import "time"

// EventType classifies calendar entries.
type EventType string

const (
	EventTypeEvent         EventType = "event"
	EventTypeHoliday       EventType = "holiday"
	EventTypeCouncil       EventType = "council_session"
	EventTypeSuspension    EventType = "suspension"
	EventTypeCommemoration EventType = "commemoration"
)

// ValidEventType reports whether the raw value names a known type.
func ValidEventType(raw string) bool {
	switch EventType(raw) {
	case EventTypeEvent, EventTypeHoliday, EventTypeCouncil, EventTypeSuspension, EventTypeCommemoration:
		return true
	default:
		return false
	}
}

// Event is a calendar entry. A nil SchoolID means the event is visible to all
// schools. Multiple events may share a date.
type Event struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  *string    `db:"description" json:"description,omitempty"`
	EventType    EventType  `db:"event_type" json:"event_type"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	SchoolID     *string    `db:"school_id" json:"school_id,omitempty"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	ImageLocator *string    `db:"image_locator" json:"image_locator,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
