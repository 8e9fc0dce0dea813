package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
)

// RequireRoles enforces role-based access control for routes. Tenant-level
// checks (owning school) stay in the services, which see the target record.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			abortWith(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			abortWith(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
