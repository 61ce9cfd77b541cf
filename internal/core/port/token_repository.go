package port

import (
	"context"
	"time"

	"github.com/vkuzn/auth-service/internal/core/domain"
)

// TokenRepository manages persisted refresh token records.
//
// Revoke is the linearization point of the rotation protocol: it must flip the
// revoked flag only when the record is still live, and report
// repository.ErrNotFound otherwise, so that concurrent rotations of the same
// token elect exactly one winner.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, record domain.RefreshTokenRecord) error
	// GetRefreshToken fetches the record matching the (userID, jti) pair.
	GetRefreshToken(ctx context.Context, userID, jti string) (*domain.RefreshTokenRecord, error)
	// RevokeRefreshToken conditionally flips revoked from false to true.
	RevokeRefreshToken(ctx context.Context, userID, jti string) error
	// DeleteExpired garbage-collects records whose expiry predates the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
