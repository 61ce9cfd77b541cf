package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/repository"
)

const uniqueViolationCode = "23505"

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row. A unique violation on the email column maps
// to repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var displayName any
	if user.DisplayName != nil && *user.DisplayName != "" {
		displayName = *user.DisplayName
	}

	var lockoutUntil any
	if user.LockoutUntil != nil {
		lockoutUntil = *user.LockoutUntil
	}

	stmt, args, err := r.builder.Insert("auth.users").
		Columns(
			"id",
			"email",
			"display_name",
			"password_hash",
			"failed_attempts",
			"lockout_until",
			"created_at",
			"updated_at",
		).
		Values(
			user.ID,
			user.Email,
			displayName,
			user.PasswordHash,
			user.FailedAttempts,
			lockoutUntil,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by case-normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"email",
			"display_name",
			"password_hash",
			"failed_attempts",
			"lockout_until",
			"created_at",
			"updated_at",
		).
		From("auth.users").
		Where(cond).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		displayName  sql.NullString
		lockoutUntil *time.Time
		user         domain.User
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&displayName,
		&user.PasswordHash,
		&user.FailedAttempts,
		&lockoutUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if displayName.Valid {
		val := displayName.String
		user.DisplayName = &val
	}
	user.LockoutUntil = lockoutUntil

	return &user, nil
}

// UpdateLoginState persists the lockout bookkeeping after a login attempt.
func (r *UserRepository) UpdateLoginState(ctx context.Context, id string, state domain.LoginState) error {
	var lockoutUntil any
	if state.LockoutUntil != nil {
		lockoutUntil = *state.LockoutUntil
	}

	stmt, args, err := r.builder.Update("auth.users").
		Set("failed_attempts", state.FailedAttempts).
		Set("lockout_until", lockoutUntil).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update login state sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update login state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
