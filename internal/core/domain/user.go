package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID             string
	Email          string
	DisplayName    *string
	PasswordHash   string
	FailedAttempts int
	LockoutUntil   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LoginState captures the mutable lockout bookkeeping carried by a user.
type LoginState struct {
	FailedAttempts int
	LockoutUntil   *time.Time
}

// LoginState extracts the current lockout bookkeeping from the user.
func (u User) LoginState() LoginState {
	return LoginState{
		FailedAttempts: u.FailedAttempts,
		LockoutUntil:   u.LockoutUntil,
	}
}

// IsLocked reports whether the account refuses logins at the given instant.
// A lockout expires silently: once the window has elapsed the account behaves
// as if it was never locked.
func (u User) IsLocked(at time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(at)
}

// Sanitized returns a copy of the user safe to hand to transport layers.
func (u User) Sanitized() User {
	copied := u
	copied.PasswordHash = ""
	return copied
}
