package domain

import "time"

// UserRegisteredEvent is emitted after a successful signup.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	RegisteredAt time.Time
}

// LoginFailedEvent is emitted for every rejected credential check.
type LoginFailedEvent struct {
	EventID        string
	UserID         string
	FailedAttempts int
	IP             *string
	OccurredAt     time.Time
}

// AccountLockedEvent is emitted when a failure streak triggers a lockout.
type AccountLockedEvent struct {
	EventID      string
	UserID       string
	LockoutUntil time.Time
	OccurredAt   time.Time
}

// TokenRotatedEvent is emitted when a refresh token is exchanged for a new pair.
type TokenRotatedEvent struct {
	EventID    string
	UserID     string
	RotatedJTI string
	IssuedJTI  string
	OccurredAt time.Time
}

// TokenReplayedEvent is emitted when an already-rotated or revoked refresh
// token is presented again.
type TokenReplayedEvent struct {
	EventID    string
	UserID     string
	JTI        string
	IP         *string
	OccurredAt time.Time
}
