package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/middleware"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
)

type authServiceMock struct {
	resp *models.LoginResponse
	err  error
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return m.resp, m.err
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{
		resp: &models.LoginResponse{
			AccessToken: "token",
			ExpiresIn:   3600,
			User:        models.UserInfo{ID: "u-1", Username: "north-primary", Role: models.RoleSchool},
			IssuedAt:    time.Now(),
		},
	}
	handler := NewAuthHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"username":"north-primary","password":"secret"}`), "application/json")
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"access_token":"token"`)
}

func TestAuthHandlerLoginRejectsBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{err: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"username":"north-primary","password":"wrong"}`), "application/json")
	handler.Login(c)
	require.Equal(t, appErrors.ErrInvalidCredentials.Status, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil, "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "u-1", Username: "north-primary", Role: models.RoleSchool, SchoolID: "sch-a",
	})
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"school_id":"sch-a"`)
}
