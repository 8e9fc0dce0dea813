package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func reportRows(report models.PeriodicReport) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "family", "school_id", "period_key", "artifact_locator",
		"artifact_name", "mime_type", "size_bytes", "uploaded_by", "uploaded_at",
	}).AddRow(
		report.ID, report.Family, report.SchoolID, report.PeriodKey, report.ArtifactLocator,
		report.ArtifactName, report.MimeType, report.SizeBytes, report.UploadedBy, report.UploadedAt,
	)
}

func TestReportRepositoryUpsertInsertsAndReturnsRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	stored := models.PeriodicReport{
		ID:              "rep-1",
		Family:          models.FamilyAttendance,
		SchoolID:        "school-a",
		PeriodKey:       "2024-03-01",
		ArtifactLocator: "attendance/att_scha_20240301.xlsx",
		ArtifactName:    "attendance.xlsx",
		MimeType:        "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		SizeBytes:       128,
		UploadedBy:      "user-a",
		UploadedAt:      time.Now().UTC(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO periodic_reports")).
		WithArgs(sqlmock.AnyArg(), models.FamilyAttendance, "school-a", "2024-03-01",
			"attendance/att_scha_20240301.xlsx", "attendance.xlsx",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			int64(128), "user-a", sqlmock.AnyArg()).
		WillReturnRows(reportRows(stored))

	report := &models.PeriodicReport{
		Family:          models.FamilyAttendance,
		SchoolID:        "school-a",
		PeriodKey:       "2024-03-01",
		ArtifactLocator: "attendance/att_scha_20240301.xlsx",
		ArtifactName:    "attendance.xlsx",
		MimeType:        "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		SizeBytes:       128,
		UploadedBy:      "user-a",
	}
	result, err := repo.Upsert(context.Background(), report)
	require.NoError(t, err)
	require.Equal(t, "rep-1", result.ID)
	require.NotEmpty(t, report.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryFindByNaturalKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	stored := models.PeriodicReport{ID: "rep-1", Family: models.FamilyCouncilMinutes, SchoolID: "school-b", PeriodKey: "2024-03", UploadedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("FROM periodic_reports WHERE family = $1 AND school_id = $2 AND period_key = $3")).
		WithArgs(models.FamilyCouncilMinutes, "school-b", "2024-03").
		WillReturnRows(reportRows(stored))

	report, err := repo.FindByNaturalKey(context.Background(), models.FamilyCouncilMinutes, "school-b", "2024-03")
	require.NoError(t, err)
	require.Equal(t, "rep-1", report.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryFindByNaturalKeyMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM periodic_reports WHERE family = $1 AND school_id = $2 AND period_key = $3")).
		WithArgs(models.FamilyAttendance, "school-a", "2024-03-02").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByNaturalKey(context.Background(), models.FamilyAttendance, "school-a", "2024-03-02")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListScopedBySchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	stored := models.PeriodicReport{ID: "rep-1", Family: models.FamilyAttendance, SchoolID: "school-a", PeriodKey: "2024-03-01", UploadedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("FROM periodic_reports WHERE family = $1 AND school_id = $2 ORDER BY period_key DESC")).
		WithArgs(models.FamilyAttendance, "school-a").
		WillReturnRows(reportRows(stored))

	reports, err := repo.List(context.Background(), models.FamilyAttendance, "school-a")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListByPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	stored := models.PeriodicReport{ID: "rep-1", Family: models.FamilyQuarterlyReport, SchoolID: "school-a", PeriodKey: "2024-Q1", UploadedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("FROM periodic_reports WHERE family = $1 AND period_key = $2 ORDER BY school_id ASC")).
		WithArgs(models.FamilyQuarterlyReport, "2024-Q1").
		WillReturnRows(reportRows(stored))

	reports, err := repo.ListByPeriod(context.Background(), models.FamilyQuarterlyReport, "2024-Q1")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryDeleteUnknownID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM periodic_reports WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
