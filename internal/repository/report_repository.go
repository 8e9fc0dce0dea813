package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supervision-portal-api/internal/models"
)

// ReportRepository persists the three periodic report families in one
// natural-key-indexed table. The unique index on (family, school_id,
// period_key) plus ON CONFLICT upsert makes the find-then-insert-or-update
// cycle atomic under concurrent writers.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, family, school_id, period_key, artifact_locator, artifact_name, mime_type, size_bytes, uploaded_by, uploaded_at`

// Upsert inserts a report or, when the natural key already exists, replaces
// the artifact reference and refreshes uploaded_at. The returned row reflects
// the stored state either way.
func (r *ReportRepository) Upsert(ctx context.Context, report *models.PeriodicReport) (*models.PeriodicReport, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.UploadedAt.IsZero() {
		report.UploadedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO periodic_reports
	(id, family, school_id, period_key, artifact_locator, artifact_name, mime_type, size_bytes, uploaded_by, uploaded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (family, school_id, period_key) DO UPDATE SET
		artifact_locator = EXCLUDED.artifact_locator,
		artifact_name = EXCLUDED.artifact_name,
		mime_type = EXCLUDED.mime_type,
		size_bytes = EXCLUDED.size_bytes,
		uploaded_by = EXCLUDED.uploaded_by,
		uploaded_at = EXCLUDED.uploaded_at
	RETURNING %s`, reportColumns)
	var stored models.PeriodicReport
	if err := r.db.GetContext(ctx, &stored, query,
		report.ID, report.Family, report.SchoolID, report.PeriodKey,
		report.ArtifactLocator, report.ArtifactName, report.MimeType,
		report.SizeBytes, report.UploadedBy, report.UploadedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert periodic report: %w", err)
	}
	return &stored, nil
}

// FindByNaturalKey looks up a report by its (family, school, period) tuple.
// A miss returns sql.ErrNoRows.
func (r *ReportRepository) FindByNaturalKey(ctx context.Context, family models.ReportFamily, schoolID, periodKey string) (*models.PeriodicReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM periodic_reports WHERE family = $1 AND school_id = $2 AND period_key = $3`, reportColumns)
	var report models.PeriodicReport
	if err := r.db.GetContext(ctx, &report, query, family, schoolID, periodKey); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByID loads one report row.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.PeriodicReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM periodic_reports WHERE id = $1`, reportColumns)
	var report models.PeriodicReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns a family's rows, optionally scoped to one school.
func (r *ReportRepository) List(ctx context.Context, family models.ReportFamily, schoolID string) ([]models.PeriodicReport, error) {
	var (
		query string
		args  []interface{}
	)
	if schoolID != "" {
		query = fmt.Sprintf(`SELECT %s FROM periodic_reports WHERE family = $1 AND school_id = $2 ORDER BY period_key DESC`, reportColumns)
		args = []interface{}{family, schoolID}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM periodic_reports WHERE family = $1 ORDER BY period_key DESC, school_id ASC`, reportColumns)
		args = []interface{}{family}
	}
	var reports []models.PeriodicReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("list periodic reports: %w", err)
	}
	return reports, nil
}

// ListByPeriod gathers one period's rows across every school, ordered by
// school for stable consolidation sheet order.
func (r *ReportRepository) ListByPeriod(ctx context.Context, family models.ReportFamily, periodKey string) ([]models.PeriodicReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM periodic_reports WHERE family = $1 AND period_key = $2 ORDER BY school_id ASC`, reportColumns)
	var reports []models.PeriodicReport
	if err := r.db.SelectContext(ctx, &reports, query, family, periodKey); err != nil {
		return nil, fmt.Errorf("list reports by period: %w", err)
	}
	return reports, nil
}

// Delete removes one report row. sql.ErrNoRows signals an unknown id.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM periodic_reports WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete periodic report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByPeriodPrefix counts a school's rows whose period key starts with the
// given prefix (e.g. "2024-03" for one month). Used by the dashboard.
func (r *ReportRepository) CountByPeriodPrefix(ctx context.Context, family models.ReportFamily, schoolID, prefix string) (int, error) {
	const query = `SELECT COUNT(*) FROM periodic_reports WHERE family = $1 AND school_id = $2 AND period_key LIKE $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, family, schoolID, prefix+"%"); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return count, nil
}
