package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vkuzn/auth-service/internal/infra/security"
)

// CSRFConfig carries the cookie and header names used by the guard.
type CSRFConfig struct {
	CookieName string
	HeaderName string
}

// CSRF enforces the double-submit check on state-changing requests: the
// request must carry a header token that verifies against the secret stored
// in the http-only cookie. Safe methods pass through untouched.
func CSRF(protector *security.CsrfProtector, cfg CSRFConfig) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = "_csrf"
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-CSRF-Token"
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		secret, err := c.Cookie(cfg.CookieName)
		if err != nil || secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "missing csrf cookie"))
			return
		}

		token := c.GetHeader(cfg.HeaderName)
		if !protector.VerifyToken(secret, token) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "invalid csrf token"))
			return
		}

		c.Next()
	}
}
