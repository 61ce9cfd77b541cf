package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/core/port"
	"github.com/vkuzn/auth-service/internal/infra/security"
	"github.com/vkuzn/auth-service/internal/repository"
)

// SignupInput carries the fields accepted at registration.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName *string
}

// RegistrationService handles user signup.
type RegistrationService struct {
	users     port.UserRepository
	passwords *security.PasswordValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	users port.UserRepository,
	passwords *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) (*RegistrationService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if passwords == nil {
		passwords = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &RegistrationService{
		users:     users,
		passwords: passwords,
		events:    events,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the service clock for deterministic tests.
func (s *RegistrationService) WithClock(clock func() time.Time) *RegistrationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Signup validates the input, hashes the password, and persists the new user.
// Validation failures are reported before any store access. The returned user
// is sanitized for transport.
func (s *RegistrationService) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	email := security.NormalizeEmail(input.Email)
	if !security.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := s.passwords.Validate(input.Password); err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			return nil, fmt.Errorf("%w: %s", ErrWeakPassword, policyErr.Message)
		}
		return nil, fmt.Errorf("validate password: %w", err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var displayName *string
	if input.DisplayName != nil && *input.DisplayName != "" {
		value := *input.DisplayName
		displayName = &value
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishUserRegistered(ctx, user)

	sanitized := user.Sanitized()
	return &sanitized, nil
}

func (s *RegistrationService) publishUserRegistered(ctx context.Context, user domain.User) {
	if s.events == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: user.CreatedAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event", zap.Error(err))
	}
}
