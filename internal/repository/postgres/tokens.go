package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/repository"
)

// TokenRepository implements port.TokenRepository using PostgreSQL.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// CreateRefreshToken inserts a new refresh token record.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, record domain.RefreshTokenRecord) error {
	stmt, args, err := r.builder.Insert("auth.refresh_tokens").
		Columns(
			"id",
			"user_id",
			"jti",
			"created_at",
			"expires_at",
			"revoked",
		).
		Values(
			record.ID,
			record.UserID,
			record.JTI,
			record.CreatedAt,
			record.ExpiresAt,
			record.Revoked,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken fetches the record matching the (userID, jti) pair.
func (r *TokenRepository) GetRefreshToken(ctx context.Context, userID, jti string) (*domain.RefreshTokenRecord, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"user_id",
			"jti",
			"created_at",
			"expires_at",
			"revoked",
		).
		From("auth.refresh_tokens").
		Where(squirrel.Eq{"user_id": userID, "jti": jti}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var record domain.RefreshTokenRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.JTI,
		&record.CreatedAt,
		&record.ExpiresAt,
		&record.Revoked,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &record, nil
}

// RevokeRefreshToken flips revoked from false to true for the matching record.
// The conditional update makes the revocation a compare-and-set: of any number
// of concurrent callers presenting the same token, exactly one sees success
// and the rest get repository.ErrNotFound.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, userID, jti string) error {
	stmt, args, err := r.builder.Update("auth.refresh_tokens").
		Set("revoked", true).
		Where(squirrel.Eq{"user_id": userID, "jti": jti, "revoked": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteExpired removes records whose expiry predates the cutoff.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("auth.refresh_tokens").
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}
