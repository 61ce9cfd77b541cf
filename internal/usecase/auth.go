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

var (
	// ErrInvalidEmail indicates the supplied email does not match the accepted format.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrWeakPassword indicates the supplied password violates the password policy.
	ErrWeakPassword = errors.New("password does not meet requirements")
	// ErrInvalidCredentials indicates the email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account refuses logins until the lockout expires.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrMissingRefreshToken indicates no refresh token was presented.
	ErrMissingRefreshToken = errors.New("refresh token required")
	// ErrInvalidRefreshToken indicates the presented refresh token is unknown,
	// expired, revoked, or already rotated.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken indicates the provided access token is malformed or signature validation failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the provided access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// TokenPair bundles the credentials issued by a successful login or rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginInput carries the credentials presented to Login.
type LoginInput struct {
	Email    string
	Password string
	IP       *string
}

// AuthService coordinates credential verification, lockout accounting, and
// the refresh token rotation protocol.
type AuthService struct {
	users     port.UserRepository
	tokens    port.TokenRepository
	issuer    *security.TokenIssuer
	passwords *security.PasswordValidator
	policy    domain.LockoutPolicy
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	tokens port.TokenRepository,
	issuer *security.TokenIssuer,
	policy domain.LockoutPolicy,
	events port.EventPublisher,
	log *zap.Logger,
) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token repository is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		users:     users,
		tokens:    tokens,
		issuer:    issuer,
		passwords: security.DefaultPasswordValidator(),
		policy:    policy,
		events:    events,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Login validates credentials against the store and, on success, issues a
// fresh access/refresh pair. Malformed email or password format is rejected
// before any store access, so format violations never count toward lockout.
// An unknown email and a wrong password are indistinguishable to the caller;
// a locked account is reported as locked regardless of the password.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, TokenPair, error) {
	email := security.NormalizeEmail(input.Email)
	if !security.ValidateEmail(email) {
		return nil, TokenPair{}, ErrInvalidEmail
	}
	if err := s.passwords.Validate(input.Password); err != nil {
		return nil, TokenPair{}, ErrWeakPassword
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, TokenPair{}, ErrAccountLocked
	}

	match, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		s.recordFailure(ctx, user, input.IP, now)
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if user.FailedAttempts != 0 || user.LockoutUntil != nil {
		state := s.policy.OnSuccess()
		if err := s.users.UpdateLoginState(ctx, user.ID, state); err != nil {
			s.logger.Warn("reset login state failed", zap.Error(err))
		}
		user.FailedAttempts = state.FailedAttempts
		user.LockoutUntil = state.LockoutUntil
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	return user, pair, nil
}

// recordFailure applies the lockout policy and persists the new state. The
// write is best-effort: the login outcome is already decided, so a storage
// hiccup only costs one counted attempt.
func (s *AuthService) recordFailure(ctx context.Context, user *domain.User, ip *string, now time.Time) {
	state := s.policy.OnFailure(user.LoginState(), now)
	if err := s.users.UpdateLoginState(ctx, user.ID, state); err != nil {
		s.logger.Warn("persist failed attempt", zap.Error(err))
		return
	}

	s.publishLoginFailed(ctx, user.ID, state.FailedAttempts, ip, now)
	if state.LockoutUntil != nil {
		s.publishAccountLocked(ctx, user.ID, *state.LockoutUntil, now)
	}
}

// Refresh rotates a presented refresh token: the stored record is revoked via
// compare-and-set, then a fresh pair is issued. Of any number of concurrent
// presentations of the same token, exactly one wins; the rest observe
// ErrInvalidRefreshToken. An issuance failure after a successful revoke
// consumes the token rather than leaving it replayable.
func (s *AuthService) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if presented == "" {
		return TokenPair{}, ErrMissingRefreshToken
	}

	claims, err := s.issuer.Verify(presented, security.PurposeRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	record, err := s.tokens.GetRefreshToken(ctx, claims.UserID, claims.JTI)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := s.now()
	if !record.IsLive(now) {
		s.publishTokenReplayed(ctx, claims.UserID, claims.JTI, now)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	if err := s.tokens.RevokeRefreshToken(ctx, claims.UserID, claims.JTI); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the rotation race.
			s.publishTokenReplayed(ctx, claims.UserID, claims.JTI, now)
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	pair, issuedJTI, err := s.issuePairWithJTI(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}

	s.publishTokenRotated(ctx, claims.UserID, claims.JTI, issuedJTI, now)

	return pair, nil
}

// Logout revokes the presented refresh token on a best-effort basis. The
// caller clears the transport cookie regardless, so every failure mode is
// swallowed.
func (s *AuthService) Logout(ctx context.Context, presented string) {
	if presented == "" {
		return
	}

	claims, err := s.issuer.Verify(presented, security.PurposeRefresh)
	if err != nil {
		return
	}

	if err := s.tokens.RevokeRefreshToken(ctx, claims.UserID, claims.JTI); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("revoke refresh token on logout", zap.Error(err))
	}
}

// ParseAccessToken verifies a bearer access token without touching the store.
func (s *AuthService) ParseAccessToken(token string) (*security.TokenClaims, error) {
	claims, err := s.issuer.Verify(token, security.PurposeAccess)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	pair, _, err := s.issuePairWithJTI(ctx, userID)
	return pair, err
}

func (s *AuthService) issuePairWithJTI(ctx context.Context, userID string) (TokenPair, string, error) {
	access, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, "", fmt.Errorf("issue refresh token: %w", err)
	}

	record := domain.RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		JTI:       refresh.JTI,
		CreatedAt: s.now(),
		ExpiresAt: refresh.ExpiresAt,
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return TokenPair{}, "", fmt.Errorf("persist refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, refresh.JTI, nil
}

func (s *AuthService) publishLoginFailed(ctx context.Context, userID string, attempts int, ip *string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.LoginFailedEvent{
		EventID:        uuid.NewString(),
		UserID:         userID,
		FailedAttempts: attempts,
		IP:             ip,
		OccurredAt:     at,
	}
	if err := s.events.PublishLoginFailed(ctx, event); err != nil {
		s.logger.Warn("publish login failed event", zap.Error(err))
	}
}

func (s *AuthService) publishAccountLocked(ctx context.Context, userID string, until, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.AccountLockedEvent{
		EventID:      uuid.NewString(),
		UserID:       userID,
		LockoutUntil: until,
		OccurredAt:   at,
	}
	if err := s.events.PublishAccountLocked(ctx, event); err != nil {
		s.logger.Warn("publish account locked event", zap.Error(err))
	}
}

func (s *AuthService) publishTokenRotated(ctx context.Context, userID, rotatedJTI, issuedJTI string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.TokenRotatedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		RotatedJTI: rotatedJTI,
		IssuedJTI:  issuedJTI,
		OccurredAt: at,
	}
	if err := s.events.PublishTokenRotated(ctx, event); err != nil {
		s.logger.Warn("publish token rotated event", zap.Error(err))
	}
}

func (s *AuthService) publishTokenReplayed(ctx context.Context, userID, jti string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.TokenReplayedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		JTI:        jti,
		OccurredAt: at,
	}
	if err := s.events.PublishTokenReplayed(ctx, event); err != nil {
		s.logger.Warn("publish token replayed event", zap.Error(err))
	}
}
