package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// TokenPurpose distinguishes the two credential kinds the issuer mints.
// Access and refresh tokens are signed with distinct secrets so a stolen
// access token cannot be replayed as a refresh token and vice versa.
type TokenPurpose string

const (
	// PurposeAccess marks short-lived stateless bearer tokens.
	PurposeAccess TokenPurpose = "access"
	// PurposeRefresh marks long-lived tokens backed by a store record.
	PurposeRefresh TokenPurpose = "refresh"
)

var (
	// ErrTokenExpired indicates the token's validity window has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates the token is malformed, carries a bad
	// signature, or was minted for a different purpose.
	ErrTokenInvalid = errors.New("token invalid")
)

// IssuedToken bundles a freshly signed credential with its identifier and expiry.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenClaims is the verified content of a presented token.
type TokenClaims struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuerConfig carries the signing material and validity windows.
type TokenIssuerConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer mints and verifies HS256 JWTs. Verification is purely
// cryptographic; refresh token liveness against the store is the caller's
// responsibility.
type TokenIssuer struct {
	cfg TokenIssuerConfig
	now func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer after validating the secrets.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" {
		return nil, fmt.Errorf("access token secret is required")
	}
	if strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}

	issuer := &TokenIssuer{cfg: cfg}
	issuer.now = func() time.Time { return time.Now().UTC() }
	return issuer, nil
}

// WithClock overrides the issuer clock for deterministic tests.
func (i *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		i.now = clock
	}
	return i
}

// AccessTTL reports the configured access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.cfg.AccessTTL
}

// RefreshTTL reports the configured refresh token lifetime.
func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.cfg.RefreshTTL
}

// IssueAccess signs a stateless access token for the user.
func (i *TokenIssuer) IssueAccess(userID string) (IssuedToken, error) {
	return i.issue(userID, PurposeAccess, i.cfg.AccessTTL)
}

// IssueRefresh signs a refresh token for the user. The caller must persist
// the matching record before handing the token to the client.
func (i *TokenIssuer) IssueRefresh(userID string) (IssuedToken, error) {
	return i.issue(userID, PurposeRefresh, i.cfg.RefreshTTL)
}

func (i *TokenIssuer) issue(userID string, purpose TokenPurpose, ttl time.Duration) (IssuedToken, error) {
	if userID == "" {
		return IssuedToken{}, fmt.Errorf("user id is required")
	}

	now := i.now()
	jti := uuid.NewString()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings{string(purpose)},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        jti,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secretFor(purpose))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}

	return IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Verify validates the signature and time bounds of the presented token and
// ensures it was minted for the expected purpose.
func (i *TokenIssuer) Verify(token string, purpose TokenPurpose) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secretFor(purpose), nil
	}, jwt.WithAudience(string(purpose)), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return nil, ErrTokenInvalid
	}

	result := &TokenClaims{
		UserID: claims.Subject,
		JTI:    claims.ID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}

func (i *TokenIssuer) secretFor(purpose TokenPurpose) []byte {
	if purpose == PurposeRefresh {
		return []byte(i.cfg.RefreshSecret)
	}
	return []byte(i.cfg.AccessSecret)
}
