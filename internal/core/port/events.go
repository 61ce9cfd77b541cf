package port

import (
	"context"

	"github.com/vkuzn/auth-service/internal/core/domain"
)

// EventPublisher delivers security events to an external bus. Publishing is
// best-effort; failures must never change the outcome of the operation that
// produced the event.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishTokenRotated(ctx context.Context, event domain.TokenRotatedEvent) error
	PublishTokenReplayed(ctx context.Context, event domain.TokenReplayedEvent) error
}
