package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/middleware"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/service"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
)

type reportServiceMock struct {
	uploadResp *models.PeriodicReport
	uploadErr  error
	listResp   []models.PeriodicReport
	listErr    error
	deleteErr  error
}

func (m *reportServiceMock) Upload(ctx context.Context, family models.ReportFamily, req dto.UploadReportRequest, upload service.ReportUpload, actor *models.JWTClaims) (*models.PeriodicReport, error) {
	return m.uploadResp, m.uploadErr
}

func (m *reportServiceMock) List(ctx context.Context, family models.ReportFamily, schoolFilter string, actor *models.JWTClaims) ([]models.PeriodicReport, error) {
	return m.listResp, m.listErr
}

func (m *reportServiceMock) Delete(ctx context.Context, family models.ReportFamily, id string, actor *models.JWTClaims) error {
	return m.deleteErr
}

type consolidatorMock struct {
	result *dto.DispatchResult
	err    error
}

func (m *consolidatorMock) ConsolidateReports(ctx context.Context, family models.ReportFamily, req dto.ConsolidateRequest, actor *models.JWTClaims) (*dto.DispatchResult, error) {
	return m.result, m.err
}

func newGinContext(method, path string, body []byte, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	return c, w
}

func multipartUpload(t *testing.T, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	part, err := mw.CreateFormFile("file", "attendance.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("workbook"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestReportHandlerUnknownFamily(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{}, &consolidatorMock{})

	c, w := newGinContext(http.MethodGet, "/reports/weekly", nil, "")
	c.Params = gin.Params{{Key: "family", Value: "weekly"}}

	handler.List(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "unknown report family")
}

func TestReportHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		uploadResp: &models.PeriodicReport{ID: "rep-1", Family: models.FamilyAttendance, PeriodKey: "2024-05-13"},
	}
	handler := NewReportHandler(mockSvc, &consolidatorMock{})

	body, contentType := multipartUpload(t, map[string]string{"date": "2024-05-13"})
	c, w := newGinContext(http.MethodPost, "/reports/attendance", body, contentType)
	c.Params = gin.Params{{Key: "family", Value: "attendance"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleSchool, SchoolID: "sch-a"})

	handler.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"rep-1"`)
}

func TestReportHandlerUploadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{}, &consolidatorMock{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("date", "2024-05-13"))
	require.NoError(t, mw.Close())

	c, w := newGinContext(http.MethodPost, "/reports/attendance", buf.Bytes(), mw.FormDataContentType())
	c.Params = gin.Params{{Key: "family", Value: "attendance"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleSchool, SchoolID: "sch-a"})

	handler.Upload(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "file is required")
}

func TestReportHandlerSendEmailPropagatesNoMatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	consolidator := &consolidatorMock{err: appErrors.ErrNoMatchingRecords}
	handler := NewReportHandler(&reportServiceMock{}, consolidator)

	payload := []byte(`{"date":"2024-05-13","recipients":["office@example.com"]}`)
	c, w := newGinContext(http.MethodPost, "/reports/attendance/send-email", payload, "application/json")
	c.Params = gin.Params{{Key: "family", Value: "attendance"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.SendEmail(c)
	require.Equal(t, appErrors.ErrNoMatchingRecords.Status, w.Code)
}
