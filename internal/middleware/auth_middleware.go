package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/errors"
)

// Context keys for user information
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

// RequireAuth rejects visitors whose session is not authenticated. It must run
// after SessionMiddleware.Attach.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		sess, ok := GetSession(c)
		if !ok {
			log.Error("RequireAuth used without a visitor session", nil)
			errors.InternalError(c, "")
			c.Abort()
			return
		}

		user := sess.Auth.User()
		if !sess.Auth.IsAuthenticated() || user == nil {
			log.Warn("Unauthenticated access to protected route", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "")
			c.Abort()
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UserEmailKey, user.Email)

		log.Debug("Visitor authenticated", map[string]interface{}{
			"user_id": user.ID,
		})

		c.Next()
	}
}

// GetUserID retrieves the backend user id from gin context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}
