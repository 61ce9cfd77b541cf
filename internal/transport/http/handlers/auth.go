package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vkuzn/auth-service/internal/infra/security"
	"github.com/vkuzn/auth-service/internal/transport/http/middleware"
	"github.com/vkuzn/auth-service/internal/usecase"
)

const (
	refreshCookieName  = "refresh_token"
	refreshTokenHeader = "X-Refresh-Token"
)

// CookieConfig carries the cookie attributes shared by auth endpoints.
type CookieConfig struct {
	CSRFCookieName string
	Secure         bool
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth    *usecase.AuthService
	csrf    *security.CsrfProtector
	cookies CookieConfig
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, csrf *security.CsrfProtector, cookies CookieConfig) *AuthHandler {
	if cookies.CSRFCookieName == "" {
		cookies.CSRFCookieName = "_csrf"
	}
	return &AuthHandler{
		auth:    auth,
		csrf:    csrf,
		cookies: cookies,
	}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
	r.GET("/me", middleware.RequireAuth(h.auth), h.me)
	r.GET("/csrf", h.csrfToken)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	var ip *string
	if reqCtx != nil && reqCtx.IP != "" {
		value := reqCtx.IP
		ip = &value
	}

	user, pair, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       ip,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email format"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account temporarily locked"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpiresAt)

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
		User:         NewUserSummary(user.Sanitized()),
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	presented := h.presentedRefreshToken(c)
	if presented == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh token required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), presented)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrMissingRefreshToken, Status: http.StatusBadRequest, Message: "refresh token required"},
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "token refresh failed")
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpiresAt)

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	if presented := h.presentedRefreshToken(c); presented != "" {
		h.auth.Logout(c.Request.Context(), presented)
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

// me is stateless introspection: the response carries the token subject and
// nothing else, so a valid signature never depends on a store round trip.
func (h *AuthHandler) me(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, MeResponse{User: UserSummary{ID: userID}})
}

func (h *AuthHandler) csrfToken(c *gin.Context) {
	secret, err := h.csrf.GenerateSecret()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "csrf token generation failed"))
		return
	}

	token, err := h.csrf.DeriveToken(secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "csrf token generation failed"))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.CSRFCookieName, secret, 0, "/", "", h.cookies.Secure, true)

	c.JSON(http.StatusOK, CsrfResponse{CsrfToken: token})
}

// presentedRefreshToken resolves the refresh token from body, header, or
// cookie, in that order.
func (h *AuthHandler) presentedRefreshToken(c *gin.Context) string {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		if token := strings.TrimSpace(req.RefreshToken); token != "" {
			return token
		}
	}

	if token := strings.TrimSpace(c.GetHeader(refreshTokenHeader)); token != "" {
		return token
	}

	if token, err := c.Cookie(refreshCookieName); err == nil {
		return strings.TrimSpace(token)
	}

	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token, maxAge, "/", "", h.cookies.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", h.cookies.Secure, true)
}
