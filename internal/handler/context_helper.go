package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/middleware"
	"github.com/noah-isme/rollcall-api/internal/models"
)

// sessionInfo describes the signed-in teacher as seen by handlers.
type sessionInfo struct {
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// currentSession reads the claims stored by middleware.JWT. It reports false on
// unprotected routes.
func currentSession(c *gin.Context) (sessionInfo, bool) {
	value, _ := c.Get(middleware.ContextUserKey)
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil || claims.Email == "" {
		return sessionInfo{}, false
	}
	info := sessionInfo{Email: claims.Email}
	if claims.ExpiresAt != nil {
		expires := claims.ExpiresAt.Time
		info.ExpiresAt = &expires
	}
	return info, true
}
