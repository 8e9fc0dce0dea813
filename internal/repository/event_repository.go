package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supervision-portal-api/internal/models"
)

// EventRepository handles calendar entry persistence.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, event_type, start_date, end_date, school_id, created_by, image_locator, created_at, updated_at`

// Create inserts a calendar entry.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO events
	(id, title, description, event_type, start_date, end_date, school_id, created_by, image_locator, created_at, updated_at)
	VALUES (:id, :title, :description, :event_type, :start_date, :end_date, :school_id, :created_by, :image_locator, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID loads one calendar entry.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// EventListFilter scopes calendar listings. SchoolID restricts to
// global events plus that school's own; zero month/year disables the window.
type EventListFilter struct {
	SchoolID string
	Month    int
	Year     int
}

// List returns calendar entries for the filter ordered by start date.
func (r *EventRepository) List(ctx context.Context, filter EventListFilter) ([]models.Event, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM events`, eventColumns))
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("(school_id IS NULL OR school_id = $%d)", len(args)))
	}
	if filter.Month >= 1 && filter.Month <= 12 && filter.Year > 0 {
		from := time.Date(filter.Year, time.Month(filter.Month), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", len(args)))
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("start_date < $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_date ASC")

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Update persists the full mutable state of an entry.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET
		title = :title, description = :description, event_type = :event_type,
		start_date = :start_date, end_date = :end_date, school_id = :school_id,
		image_locator = :image_locator, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes one calendar entry.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM events WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUpcoming counts entries starting on or after the given time.
func (r *EventRepository) CountUpcoming(ctx context.Context, from time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM events WHERE start_date >= $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, from); err != nil {
		return 0, fmt.Errorf("count upcoming events: %w", err)
	}
	return count, nil
}
