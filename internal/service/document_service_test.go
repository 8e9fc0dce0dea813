package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type documentRepoStub struct {
	docs map[string]*models.RepositoryDocument
	seq  int
}

func newDocumentRepoStub() *documentRepoStub {
	return &documentRepoStub{docs: make(map[string]*models.RepositoryDocument)}
}

func (r *documentRepoStub) Create(ctx context.Context, doc *models.RepositoryDocument) error {
	r.seq++
	doc.ID = fmt.Sprintf("doc-%d", r.seq)
	doc.CreatedAt = time.Now().UTC()
	stored := *doc
	r.docs[doc.ID] = &stored
	return nil
}

func (r *documentRepoStub) GetByID(ctx context.Context, id string) (*models.RepositoryDocument, error) {
	if doc, ok := r.docs[id]; ok {
		copy := *doc
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *documentRepoStub) List(ctx context.Context, schoolID string) ([]models.RepositoryDocument, error) {
	result := make([]models.RepositoryDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		if schoolID != "" && !doc.VisibleTo(schoolID) {
			continue
		}
		result = append(result, *doc)
	}
	return result, nil
}

func (r *documentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.docs, id)
	return nil
}

type documentStorageStub struct {
	dir     string
	deleted []string
	seq     int
}

func newDocumentStorageStub(t *testing.T) *documentStorageStub {
	return &documentStorageStub{dir: t.TempDir()}
}

func (s *documentStorageStub) SaveStream(category storage.Category, filename string, size int64, r io.Reader) (string, error) {
	s.seq++
	locator := fmt.Sprintf("%s/%d-%s", category, s.seq, filename)
	path := filepath.Join(s.dir, filepath.FromSlash(locator))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return locator, nil
}

func (s *documentStorageStub) Open(locator string) (*os.File, error) {
	return os.Open(filepath.Join(s.dir, filepath.FromSlash(locator)))
}

func (s *documentStorageStub) Delete(locator string) error {
	s.deleted = append(s.deleted, locator)
	return os.Remove(filepath.Join(s.dir, filepath.FromSlash(locator)))
}

func pdfUpload(name string) DocumentUpload {
	return DocumentUpload{
		Filename: name,
		Size:     24,
		MimeType: "application/pdf",
		Content:  bytes.NewReader(bytes.Repeat([]byte{0x25}, 24)),
	}
}

func newTestDocumentService(t *testing.T, repo *documentRepoStub) (*DocumentService, *documentStorageStub) {
	store := newDocumentStorageStub(t)
	signer := storage.NewSignedURLSigner("doc-secret", time.Minute)
	svc := NewDocumentService(repo, store, signer, nil, nil, DocumentServiceConfig{APIPrefix: "/api/v1"})
	return svc, store
}

func TestDocumentServiceCreateAdminOnly(t *testing.T) {
	svc, _ := newTestDocumentService(t, newDocumentRepoStub())

	_, err := svc.Create(context.Background(),
		dto.CreateDocumentRequest{Title: "Policy"}, pdfUpload("policy.pdf"), schoolClaims("sch-a"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDocumentServiceAllowListVisibility(t *testing.T) {
	repo := newDocumentRepoStub()
	svc, _ := newTestDocumentService(t, repo)

	shared, err := svc.Create(context.Background(),
		dto.CreateDocumentRequest{Title: "Shared Circular"}, pdfUpload("circular.pdf"), adminClaims())
	require.NoError(t, err)
	require.Empty(t, shared.AllowedSchoolIDs)

	restricted, err := svc.Create(context.Background(),
		dto.CreateDocumentRequest{Title: "B Only", AllowedSchoolIDs: "sch-b"}, pdfUpload("b-only.pdf"), adminClaims())
	require.NoError(t, err)
	require.Equal(t, pq.StringArray{"sch-b"}, restricted.AllowedSchoolIDs)

	forA, err := svc.List(context.Background(), schoolClaims("sch-a"))
	require.NoError(t, err)
	require.Len(t, forA, 1)
	require.Equal(t, "Shared Circular", forA[0].Title)

	forB, err := svc.List(context.Background(), schoolClaims("sch-b"))
	require.NoError(t, err)
	require.Len(t, forB, 2)

	forAdmin, err := svc.List(context.Background(), adminClaims())
	require.NoError(t, err)
	require.Len(t, forAdmin, 2)
	for _, doc := range forAdmin {
		require.NotEmpty(t, doc.DownloadURL)
	}
}

func TestDocumentServiceGetHidesRestrictedDocument(t *testing.T) {
	repo := newDocumentRepoStub()
	svc, _ := newTestDocumentService(t, repo)

	restricted, err := svc.Create(context.Background(),
		dto.CreateDocumentRequest{Title: "B Only", AllowedSchoolIDs: "sch-b"}, pdfUpload("b.pdf"), adminClaims())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), restricted.ID, schoolClaims("sch-a"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	doc, err := svc.Get(context.Background(), restricted.ID, schoolClaims("sch-b"))
	require.NoError(t, err)
	require.Equal(t, restricted.ID, doc.ID)
}

func TestDocumentServiceDownloadWithSignedToken(t *testing.T) {
	repo := newDocumentRepoStub()
	store := newDocumentStorageStub(t)
	signer := storage.NewSignedURLSigner("doc-secret", time.Minute)
	svc := NewDocumentService(repo, store, signer, nil, nil, DocumentServiceConfig{})

	doc, err := svc.Create(context.Background(),
		dto.CreateDocumentRequest{Title: "Manual"}, pdfUpload("manual.pdf"), adminClaims())
	require.NoError(t, err)

	token, _, err := signer.Generate(doc.ID, doc.ArtifactLocator)
	require.NoError(t, err)

	download, err := svc.Download(context.Background(), doc.ID, token)
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	require.Equal(t, "manual.pdf", download.Filename)
	require.Equal(t, "application/pdf", download.ContentType)

	_, err = svc.Download(context.Background(), "doc-other", token)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDocumentServiceDeleteReleasesArtifact(t *testing.T) {
	repo := newDocumentRepoStub()
	svc, store := newTestDocumentService(t, repo)

	doc, err := svc.Create(context.Background(),
		dto.CreateDocumentRequest{Title: "Obsolete"}, pdfUpload("old.pdf"), adminClaims())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), doc.ID, adminClaims()))
	require.Empty(t, repo.docs)
	require.Contains(t, store.deleted, doc.ArtifactLocator)
}
