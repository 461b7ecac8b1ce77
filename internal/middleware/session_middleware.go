package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/storefront"
)

// Context keys for the visitor session
const (
	SessionIDKey = "session_id"
	SessionKey   = "visitor_session"
)

// SessionOptions configures the visitor cookie.
type SessionOptions struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

type SessionMiddleware struct {
	manager *storefront.Manager
	opts    SessionOptions
}

func NewSessionMiddleware(manager *storefront.Manager, opts SessionOptions) *SessionMiddleware {
	if opts.CookieName == "" {
		opts.CookieName = "sf_session"
	}
	return &SessionMiddleware{manager: manager, opts: opts}
}

// Attach resolves the visitor session from the cookie, issuing a new id when
// the cookie is missing or malformed.
func (m *SessionMiddleware) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		sid, err := c.Cookie(m.opts.CookieName)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			log.Debug("Issuing visitor session", map[string]interface{}{
				"session_id": shortID(sid),
			})
		}

		// Refresh the cookie on every request so active visitors keep it
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(m.opts.CookieName, sid, int(m.opts.MaxAge.Seconds()), "/", "", m.opts.Secure, true)

		sess, err := m.manager.Get(c.Request.Context(), sid)
		if err != nil {
			log.Error("Failed to resolve visitor session", err)
			errors.InternalError(c, "")
			c.Abort()
			return
		}

		c.Set(SessionIDKey, sid)
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// GetSession retrieves the visitor session from gin context
func GetSession(c *gin.Context) (*storefront.Session, bool) {
	v, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := v.(*storefront.Session)
	return sess, ok
}
