package port

import (
	"context"

	"github.com/vkuzn/auth-service/internal/core/domain"
)

// UserRepository exposes persistence behavior for user records.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail looks up a user by case-normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdateLoginState persists the lockout bookkeeping after a login attempt.
	UpdateLoginState(ctx context.Context, id string, state domain.LoginState) error
}
