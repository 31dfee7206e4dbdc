package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
)

// UserIDHeader carries the authenticated owner ID set by the gateway in front of the API
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// RequireUser rejects requests without a caller identity and stores it for handlers
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			_ = c.Error(apperrors.NewAppError(apperrors.ErrorTypeForbidden, apperrors.CodeNotAParticipant,
				"missing caller identity"))
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller identity stored by RequireUser
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
