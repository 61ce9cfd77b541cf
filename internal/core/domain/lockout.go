package domain

import "time"

const (
	// DefaultMaxAttempts is the number of consecutive failures that trigger a lockout.
	DefaultMaxAttempts = 5
	// DefaultLockoutDuration is how long a triggered lockout refuses logins.
	DefaultLockoutDuration = 15 * time.Minute
)

// LockoutPolicy decides how failed logins accumulate into account lockouts.
// It is a pure function of the current login state and the clock; persistence
// is the caller's concern.
type LockoutPolicy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// DefaultLockoutPolicy returns the policy used when configuration is absent.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		LockoutDuration: DefaultLockoutDuration,
	}
}

// OnFailure returns the state after one more failed credential check.
// Reaching MaxAttempts sets the lockout window and resets the counter to
// zero, so counting starts fresh once the window expires.
func (p LockoutPolicy) OnFailure(current LoginState, at time.Time) LoginState {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	duration := p.LockoutDuration
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}

	next := LoginState{FailedAttempts: current.FailedAttempts + 1, LockoutUntil: current.LockoutUntil}
	if next.FailedAttempts >= maxAttempts {
		until := at.Add(duration)
		next.LockoutUntil = &until
		next.FailedAttempts = 0
	}
	return next
}

// OnSuccess returns the state after a successful credential check: counters
// cleared, lockout lifted.
func (p LockoutPolicy) OnSuccess() LoginState {
	return LoginState{}
}
