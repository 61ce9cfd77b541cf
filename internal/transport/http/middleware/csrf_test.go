package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vkuzn/auth-service/internal/infra/security"
)

func newCsrfTestRouter(t *testing.T) (*gin.Engine, *security.CsrfProtector) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	protector := security.NewCsrfProtector(32)

	r := gin.New()
	r.Use(CSRF(protector, CSRFConfig{CookieName: "_csrf", HeaderName: "X-CSRF-Token"}))
	r.GET("/resource", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/resource", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r, protector
}

func TestCSRFAllowsSafeMethods(t *testing.T) {
	r, _ := newCsrfTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/resource", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET without token: status %d", w.Code)
	}
}

func TestCSRFRejectsMutationWithoutCookie(t *testing.T) {
	r, _ := newCsrfTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/resource", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("POST without cookie: status %d, want 403", w.Code)
	}
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	r, protector := newCsrfTestRouter(t)

	secret, err := protector.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/resource", nil)
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: secret})
	req.Header.Set("X-CSRF-Token", "salt.bogusmac")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("POST with bogus token: status %d, want 403", w.Code)
	}
}

func TestCSRFAcceptsDerivedToken(t *testing.T) {
	r, protector := newCsrfTestRouter(t)

	secret, err := protector.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	token, err := protector.DeriveToken(secret)
	if err != nil {
		t.Fatalf("DeriveToken returned error: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/resource", nil)
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: secret})
	req.Header.Set("X-CSRF-Token", token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST with valid token: status %d", w.Code)
	}
}

func TestCSRFRejectsTokenFromDifferentSecret(t *testing.T) {
	r, protector := newCsrfTestRouter(t)

	secret, err := protector.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	other, err := protector.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret returned error: %v", err)
	}
	token, err := protector.DeriveToken(other)
	if err != nil {
		t.Fatalf("DeriveToken returned error: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/resource", nil)
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: secret})
	req.Header.Set("X-CSRF-Token", token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("POST with foreign token: status %d, want 403", w.Code)
	}
}
