package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/response"
)

// RequireRoles admits only callers whose token carries one of roles.
// It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
