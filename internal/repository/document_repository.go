package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/supervision-portal-api/internal/models"
)

// DocumentRepository handles repository document metadata. Allow-list
// visibility is applied in the query so school accounts never see rows they
// are not permitted to.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, title, description, artifact_locator, artifact_name, content_type, size_bytes, uploaded_by, allowed_school_ids, created_at`

// Create inserts a document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.RepositoryDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.AllowedSchoolIDs == nil {
		doc.AllowedSchoolIDs = pq.StringArray{}
	}
	const query = `INSERT INTO repository_documents
	(id, title, description, artifact_locator, artifact_name, content_type, size_bytes, uploaded_by, allowed_school_ids, created_at)
	VALUES (:id, :title, :description, :artifact_locator, :artifact_name, :content_type, :size_bytes, :uploaded_by, :allowed_school_ids, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID loads one document record.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.RepositoryDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM repository_documents WHERE id = $1`, documentColumns)
	var doc models.RepositoryDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents visible to the given school. An empty schoolID
// (admin) returns everything; otherwise only rows with an empty allow-list or
// one containing the school.
func (r *DocumentRepository) List(ctx context.Context, schoolID string) ([]models.RepositoryDocument, error) {
	var (
		query string
		args  []interface{}
	)
	if schoolID != "" {
		query = fmt.Sprintf(`SELECT %s FROM repository_documents
	WHERE cardinality(allowed_school_ids) = 0 OR $1 = ANY(allowed_school_ids)
	ORDER BY created_at DESC`, documentColumns)
		args = []interface{}{schoolID}
	} else {
		query = fmt.Sprintf(`SELECT %s FROM repository_documents ORDER BY created_at DESC`, documentColumns)
	}
	var docs []models.RepositoryDocument
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListByIDs loads the given documents, preserving only existing rows.
func (r *DocumentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.RepositoryDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM repository_documents WHERE id = ANY($1) ORDER BY created_at ASC`, documentColumns)
	var docs []models.RepositoryDocument
	if err := r.db.SelectContext(ctx, &docs, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("list documents by ids: %w", err)
	}
	return docs, nil
}

// Delete removes one document record.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM repository_documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
