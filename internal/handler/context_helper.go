package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reimbursement-portal-api/internal/middleware"
	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
)

// actorFromContext returns the authenticated caller set by middleware.JWT.
func actorFromContext(c *gin.Context) (*models.JWTClaims, error) {
	claims, ok := middleware.Claims(c)
	if !ok || claims.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}
