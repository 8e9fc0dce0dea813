package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
	"github.com/noah-isme/supervision-portal-api/pkg/export"
	"github.com/noah-isme/supervision-portal-api/pkg/mailer"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

type consolReportsStub struct {
	records []models.PeriodicReport
}

func (s consolReportsStub) ListByPeriod(ctx context.Context, family models.ReportFamily, periodKey string) ([]models.PeriodicReport, error) {
	matched := make([]models.PeriodicReport, 0, len(s.records))
	for _, record := range s.records {
		if record.Family == family && record.PeriodKey == periodKey {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

type consolDocsStub struct {
	docs []models.RepositoryDocument
}

func (s consolDocsStub) ListByIDs(ctx context.Context, ids []string) ([]models.RepositoryDocument, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	matched := make([]models.RepositoryDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		if _, ok := wanted[doc.ID]; ok {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

type consolSchoolsStub struct{}

func (consolSchoolsStub) List(ctx context.Context) ([]models.School, error) {
	return []models.School{
		{ID: "sch-a", Code: "SCH-A", Name: "North Primary"},
		{ID: "sch-b", Code: "SCH-B", Name: "South Primary"},
		{ID: "sch-c", Code: "SCH-C", Name: "East Primary"},
	}, nil
}

type consolStorageStub struct {
	artifacts map[string][]byte
	reads     []string
	saved     map[string][]byte
	deleted   []string
}

func newConsolStorageStub() *consolStorageStub {
	return &consolStorageStub{artifacts: make(map[string][]byte), saved: make(map[string][]byte)}
}

func (s *consolStorageStub) Read(locator string) ([]byte, error) {
	s.reads = append(s.reads, locator)
	if data, ok := s.artifacts[locator]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("missing artifact %s", locator)
}

func (s *consolStorageStub) Save(category storage.Category, filename string, data []byte) (string, error) {
	locator := fmt.Sprintf("%s/%s", category, filename)
	s.saved[locator] = data
	return locator, nil
}

func (s *consolStorageStub) Delete(locator string) error {
	s.deleted = append(s.deleted, locator)
	return nil
}

func (s *consolStorageStub) Path(locator string) string {
	return "/tmp/" + locator
}

type senderStub struct {
	sent    []mailer.Message
	sendErr error
}

func (s *senderStub) Send(msg mailer.Message) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func sampleWorkbookBytes(t *testing.T, sheet string, cells [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	for i, row := range cells {
		cell, err := excelize.JoinCellName("A", i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newConsolService(reports consolReportsStub, docs consolDocsStub, store *consolStorageStub, sender *senderStub) *ConsolidationService {
	return NewConsolidationService(reports, docs, consolSchoolsStub{}, store,
		export.NewWorkbookBuilder(), sender, nil, nil, nil)
}

func TestConsolidationEmptySelectionShortCircuits(t *testing.T) {
	store := newConsolStorageStub()
	sender := &senderStub{}
	svc := newConsolService(consolReportsStub{}, consolDocsStub{}, store, sender)

	_, err := svc.ConsolidateReports(context.Background(), models.FamilyAttendance,
		dto.ConsolidateRequest{Date: "2024-03-01", Recipients: []string{"chief@example.org"}}, adminClaims())
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNoMatchingRecords.Code, appErr.Code)
	require.Empty(t, store.reads)
	require.Empty(t, sender.sent)
}

func TestConsolidationForbiddenForSchoolAccount(t *testing.T) {
	svc := newConsolService(consolReportsStub{}, consolDocsStub{}, newConsolStorageStub(), &senderStub{})

	_, err := svc.ConsolidateReports(context.Background(), models.FamilyAttendance,
		dto.ConsolidateRequest{Date: "2024-03-01", Recipients: []string{"chief@example.org"}}, schoolClaims("sch-a"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestConsolidationMergesMixedSourcesAndDispatches(t *testing.T) {
	store := newConsolStorageStub()
	store.artifacts["attendance/a.xlsx"] = sampleWorkbookBytes(t, "Day", [][]interface{}{
		{"Student", "Present"},
		{"Alice", "yes"},
	})
	store.artifacts["attendance/b.pdf"] = []byte("%PDF-1.4 not a spreadsheet")

	reports := consolReportsStub{records: []models.PeriodicReport{
		{ID: "rep-1", Family: models.FamilyAttendance, SchoolID: "sch-a", PeriodKey: "2024-03-01",
			ArtifactLocator: "attendance/a.xlsx", ArtifactName: "a.xlsx",
			MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{ID: "rep-2", Family: models.FamilyAttendance, SchoolID: "sch-b", PeriodKey: "2024-03-01",
			ArtifactLocator: "attendance/b.pdf", ArtifactName: "b.pdf", MimeType: "application/pdf"},
	}}
	sender := &senderStub{}
	svc := newConsolService(reports, consolDocsStub{}, store, sender)

	result, err := svc.ConsolidateReports(context.Background(), models.FamilyAttendance,
		dto.ConsolidateRequest{Date: "2024-03-01", Recipients: []string{"chief@example.org", "deputy@example.org"}}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, 2, result.Records)
	require.Equal(t, 2, result.Sheets)
	require.Equal(t, 2, result.Recipients)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	require.Len(t, msg.Attachments, 1)
	require.Contains(t, msg.Subject, "Attendance")

	require.Len(t, store.saved, 1)
	for locator, data := range store.saved {
		require.Contains(t, store.deleted, locator)

		merged, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		sheets := merged.GetSheetList()
		require.ElementsMatch(t, []string{"North Primary", "South Primary"}, sheets)
		value, err := merged.GetCellValue("North Primary", "A2")
		require.NoError(t, err)
		require.Equal(t, "Alice", value)
		require.NoError(t, merged.Close())
	}
}

func TestConsolidationDispatchFailureStillRemovesTransient(t *testing.T) {
	store := newConsolStorageStub()
	store.artifacts["minutes/m.xlsx"] = sampleWorkbookBytes(t, "Minutes", [][]interface{}{{"Topic"}})
	reports := consolReportsStub{records: []models.PeriodicReport{
		{ID: "rep-1", Family: models.FamilyCouncilMinutes, SchoolID: "sch-a", PeriodKey: "2024-03",
			ArtifactLocator: "minutes/m.xlsx", ArtifactName: "m.xlsx",
			MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}}
	sender := &senderStub{sendErr: fmt.Errorf("relay unreachable")}
	svc := newConsolService(reports, consolDocsStub{}, store, sender)

	_, err := svc.ConsolidateReports(context.Background(), models.FamilyCouncilMinutes,
		dto.ConsolidateRequest{Month: 3, Year: 2024, Recipients: []string{"chief@example.org"}}, adminClaims())
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrDispatchFailed.Code, appErr.Code)
	require.Len(t, store.deleted, 1)
}

func TestConsolidationDocumentsUsesTitlesAsSheetNames(t *testing.T) {
	store := newConsolStorageStub()
	store.artifacts["documents/policy.pdf"] = []byte("%PDF-1.4")
	docs := consolDocsStub{docs: []models.RepositoryDocument{
		{ID: "doc-1", Title: "Safety Policy", ArtifactLocator: "documents/policy.pdf",
			ArtifactName: "policy.pdf", ContentType: "application/pdf"},
	}}
	sender := &senderStub{}
	svc := newConsolService(consolReportsStub{}, docs, store, sender)

	result, err := svc.ConsolidateDocuments(context.Background(),
		dto.ConsolidateDocumentsRequest{DocumentIDs: []string{"doc-1"}, Recipients: []string{"chief@example.org"}}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, 1, result.Records)
	require.Len(t, sender.sent, 1)

	for _, data := range store.saved {
		merged, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		require.Contains(t, merged.GetSheetList(), "Safety Policy")
		require.NoError(t, merged.Close())
	}
}

func TestConsolidationValidatesRecipients(t *testing.T) {
	svc := newConsolService(consolReportsStub{}, consolDocsStub{}, newConsolStorageStub(), &senderStub{})

	_, err := svc.ConsolidateReports(context.Background(), models.FamilyAttendance,
		dto.ConsolidateRequest{Date: "2024-03-01"}, adminClaims())
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
