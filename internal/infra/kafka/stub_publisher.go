package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/core/port"
	"github.com/vkuzn/auth-service/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (s *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	s.logger.Debug("event: user registered",
		zap.String("user_id", event.UserID),
		zap.String("email", logger.MaskEmail(event.Email)),
	)
	return nil
}

func (s *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	s.logger.Debug("event: login failed",
		zap.String("user_id", event.UserID),
		zap.Int("failed_attempts", event.FailedAttempts),
	)
	return nil
}

func (s *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	s.logger.Debug("event: account locked",
		zap.String("user_id", event.UserID),
		zap.Time("lockout_until", event.LockoutUntil),
	)
	return nil
}

func (s *StubPublisher) PublishTokenRotated(_ context.Context, event domain.TokenRotatedEvent) error {
	s.logger.Debug("event: token rotated",
		zap.String("user_id", event.UserID),
		zap.String("rotated_jti", logger.MaskString(event.RotatedJTI)),
	)
	return nil
}

func (s *StubPublisher) PublishTokenReplayed(_ context.Context, event domain.TokenReplayedEvent) error {
	s.logger.Warn("event: refresh token replay detected",
		zap.String("user_id", event.UserID),
		zap.String("jti", logger.MaskString(event.JTI)),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
