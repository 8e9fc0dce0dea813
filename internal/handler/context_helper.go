package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/middleware"
	"github.com/noah-isme/supervision-portal-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}
