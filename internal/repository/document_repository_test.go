package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/models"
)

func documentRows(doc models.RepositoryDocument) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "artifact_locator", "artifact_name",
		"content_type", "size_bytes", "uploaded_by", "allowed_school_ids", "created_at",
	}).AddRow(
		doc.ID, doc.Title, doc.Description, doc.ArtifactLocator, doc.ArtifactName,
		doc.ContentType, doc.SizeBytes, doc.UploadedBy, doc.AllowedSchoolIDs, doc.CreatedAt,
	)
}

func TestDocumentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO repository_documents")).
		WithArgs(sqlmock.AnyArg(), "Circular 12", nil, "documents/circular.pdf", "circular.pdf",
			"application/pdf", int64(64), "admin-1", pq.StringArray{}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.RepositoryDocument{
		Title:           "Circular 12",
		ArtifactLocator: "documents/circular.pdf",
		ArtifactName:    "circular.pdf",
		ContentType:     "application/pdf",
		SizeBytes:       64,
		UploadedBy:      "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListAppliesAllowListForSchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	doc := models.RepositoryDocument{
		ID: "doc-1", Title: "Circular", ArtifactLocator: "documents/c.pdf",
		ArtifactName: "c.pdf", ContentType: "application/pdf",
		AllowedSchoolIDs: pq.StringArray{"school-b"}, CreatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("cardinality(allowed_school_ids) = 0 OR $1 = ANY(allowed_school_ids)")).
		WithArgs("school-b").
		WillReturnRows(documentRows(doc))

	docs, err := repo.List(context.Background(), "school-b")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListUnrestrictedForAdmin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	doc := models.RepositoryDocument{ID: "doc-1", Title: "Circular", AllowedSchoolIDs: pq.StringArray{}, CreatedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("FROM repository_documents ORDER BY created_at DESC")).
		WillReturnRows(documentRows(doc))

	docs, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	doc := models.RepositoryDocument{ID: "doc-1", Title: "Circular", AllowedSchoolIDs: pq.StringArray{}, CreatedAt: time.Now()}
	mock.ExpectQuery(regexp.QuoteMeta("FROM repository_documents WHERE id = ANY($1)")).
		WithArgs(pq.StringArray{"doc-1", "doc-2"}).
		WillReturnRows(documentRows(doc))

	docs, err := repo.ListByIDs(context.Background(), []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
