package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/core/port"
	"github.com/vkuzn/auth-service/internal/infra/config"
	"github.com/vkuzn/auth-service/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed security event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes auth.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Email        string    `json:"email"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Email:        logger.MaskEmail(event.Email),
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.user.registered", event.UserID, event.RegisteredAt, payload)
}

// PublishLoginFailed publishes auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		UserID         string    `json:"user_id"`
		FailedAttempts int       `json:"failed_attempts"`
		IP             *string   `json:"ip,omitempty"`
		OccurredAt     time.Time `json:"occurred_at"`
	}{
		UserID:         event.UserID,
		FailedAttempts: event.FailedAttempts,
		IP:             event.IP,
		OccurredAt:     event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.failed", event.UserID, event.OccurredAt, payload)
}

// PublishAccountLocked publishes auth.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		LockoutUntil time.Time `json:"lockout_until"`
		OccurredAt   time.Time `json:"occurred_at"`
	}{
		UserID:       event.UserID,
		LockoutUntil: event.LockoutUntil.UTC(),
		OccurredAt:   event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.account.locked", event.UserID, event.OccurredAt, payload)
}

// PublishTokenRotated publishes auth.token.rotated events.
func (p *EventPublisher) PublishTokenRotated(ctx context.Context, event domain.TokenRotatedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		RotatedJTI string    `json:"rotated_jti"`
		IssuedJTI  string    `json:"issued_jti"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		UserID:     event.UserID,
		RotatedJTI: logger.MaskString(event.RotatedJTI),
		IssuedJTI:  logger.MaskString(event.IssuedJTI),
		OccurredAt: event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.token.rotated", event.UserID, event.OccurredAt, payload)
}

// PublishTokenReplayed publishes auth.token.replayed events.
func (p *EventPublisher) PublishTokenReplayed(ctx context.Context, event domain.TokenReplayedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		JTI        string    `json:"jti"`
		IP         *string   `json:"ip,omitempty"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		UserID:     event.UserID,
		JTI:        logger.MaskString(event.JTI),
		IP:         event.IP,
		OccurredAt: event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.token.replayed", event.UserID, event.OccurredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
