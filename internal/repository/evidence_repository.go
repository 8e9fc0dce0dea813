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

// EvidenceRepository handles photographic evidence metadata.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository constructs the repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

const evidenceColumns = `id, school_id, title, description, artifact_locators, content_types, uploaded_by, created_at`

// Create inserts an evidence record with all of its artifact locators.
func (r *EvidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	if evidence.ID == "" {
		evidence.ID = uuid.NewString()
	}
	if evidence.CreatedAt.IsZero() {
		evidence.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO evidence
	(id, school_id, title, description, artifact_locators, content_types, uploaded_by, created_at)
	VALUES (:id, :school_id, :title, :description, :artifact_locators, :content_types, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, evidence); err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

// GetByID loads one evidence record.
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*models.Evidence, error) {
	query := fmt.Sprintf(`SELECT %s FROM evidence WHERE id = $1`, evidenceColumns)
	var evidence models.Evidence
	if err := r.db.GetContext(ctx, &evidence, query, id); err != nil {
		return nil, err
	}
	return &evidence, nil
}

// List returns evidence records, optionally scoped to one school.
func (r *EvidenceRepository) List(ctx context.Context, schoolID string) ([]models.Evidence, error) {
	var (
		query string
		args  []interface{}
	)
	if schoolID != "" {
		query = fmt.Sprintf(`SELECT %s FROM evidence WHERE school_id = $1 ORDER BY created_at DESC`, evidenceColumns)
		args = []interface{}{schoolID}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM evidence ORDER BY created_at DESC`, evidenceColumns)
	}
	var records []models.Evidence
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return records, nil
}

// Delete removes one evidence record.
func (r *EvidenceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM evidence WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check evidence delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountBySchoolSince counts a school's records created on or after the cutoff.
func (r *EvidenceRepository) CountBySchoolSince(ctx context.Context, schoolID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM evidence WHERE school_id = $1 AND created_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, since); err != nil {
		return 0, fmt.Errorf("count evidence: %w", err)
	}
	return count, nil
}
