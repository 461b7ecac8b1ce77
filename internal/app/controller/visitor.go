package controller

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/storefront"
)

// visitor returns the session attached by the session middleware, answering
// 500 when the route was mounted without it.
func visitor(c *gin.Context) (*storefront.Session, bool) {
	sess, ok := middleware.GetSession(c)
	if !ok {
		middleware.GetLoggerFromContext(c).Error("Route mounted without visitor session middleware", nil, map[string]interface{}{
			"path": c.FullPath(),
		})
		apperrors.InternalError(c, "")
		return nil, false
	}
	return sess, true
}
