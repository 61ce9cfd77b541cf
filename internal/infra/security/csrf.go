package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const csrfSaltLength = 8

// GenerateSecureToken returns a base64 URL-safe random string using the
// specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CsrfProtector implements the double-submit pattern: a per-session secret
// travels in an http-only cookie, and each state-changing request must echo a
// token derived from that secret in a custom header.
type CsrfProtector struct {
	secretLength int
}

// NewCsrfProtector constructs a protector with the given secret byte length.
func NewCsrfProtector(secretLength int) *CsrfProtector {
	if secretLength <= 0 {
		secretLength = 32
	}
	return &CsrfProtector{secretLength: secretLength}
}

// GenerateSecret mints a fresh per-session secret for the cookie.
func (p *CsrfProtector) GenerateSecret() (string, error) {
	return GenerateSecureToken(p.secretLength)
}

// DeriveToken produces a header token for the secret. Each call uses a fresh
// salt so tokens are not replayable across secrets.
func (p *CsrfProtector) DeriveToken(secret string) (string, error) {
	salt, err := GenerateSecureToken(csrfSaltLength)
	if err != nil {
		return "", err
	}
	return salt + "." + signCsrf(secret, salt), nil
}

// VerifyToken checks the presented header token against the cookie secret in
// constant time.
func (p *CsrfProtector) VerifyToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}

	salt, mac, found := strings.Cut(token, ".")
	if !found || salt == "" || mac == "" {
		return false
	}

	expected := signCsrf(secret, salt)
	return hmac.Equal([]byte(expected), []byte(mac))
}

func signCsrf(secret, salt string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
