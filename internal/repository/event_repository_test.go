package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/models"
)

func eventRows(event models.Event) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "event_type", "start_date", "end_date",
		"school_id", "created_by", "image_locator", "created_at", "updated_at",
	}).AddRow(
		event.ID, event.Title, event.Description, event.EventType, event.StartDate, event.EndDate,
		event.SchoolID, event.CreatedBy, event.ImageLocator, event.CreatedAt, event.UpdatedAt,
	)
}

func TestEventRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{
		Title:     "Founding Day",
		EventType: models.EventTypeCommemoration,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), event))
	require.NotEmpty(t, event.ID)
	require.False(t, event.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListScopesSchoolToGlobalAndOwn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	event := models.Event{ID: "ev-1", Title: "Holiday", EventType: models.EventTypeHoliday, StartDate: time.Now(), CreatedBy: "admin-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("(school_id IS NULL OR school_id = $1)")).
		WithArgs("school-a").
		WillReturnRows(eventRows(event))

	events, err := repo.List(context.Background(), EventListFilter{SchoolID: "school-a"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListWithMonthWindow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	event := models.Event{ID: "ev-1", Title: "Council", EventType: models.EventTypeCouncil, StartDate: time.Now(), CreatedBy: "admin-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("start_date >= $1 AND start_date < $2")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(eventRows(event))

	events, err := repo.List(context.Background(), EventListFilter{Month: 3, Year: 2024})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDeleteUnknownID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
