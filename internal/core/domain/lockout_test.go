package domain

import (
	"testing"
	"time"
)

func TestLockoutPolicyOnFailureIncrements(t *testing.T) {
	policy := DefaultLockoutPolicy()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	state := LoginState{}
	for i := 1; i < DefaultMaxAttempts; i++ {
		state = policy.OnFailure(state, now)
		if state.FailedAttempts != i {
			t.Fatalf("after %d failures got counter %d", i, state.FailedAttempts)
		}
		if state.LockoutUntil != nil {
			t.Fatalf("lockout triggered early at attempt %d", i)
		}
	}
}

func TestLockoutPolicyTriggersAtMaxAttempts(t *testing.T) {
	policy := LockoutPolicy{MaxAttempts: 3, LockoutDuration: 10 * time.Minute}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	state := LoginState{FailedAttempts: 2}
	state = policy.OnFailure(state, now)

	if state.LockoutUntil == nil {
		t.Fatal("expected lockout to trigger")
	}
	if got, want := *state.LockoutUntil, now.Add(10*time.Minute); !got.Equal(want) {
		t.Fatalf("lockout until %v, want %v", got, want)
	}
	if state.FailedAttempts != 0 {
		t.Fatalf("expected counter reset on trigger, got %d", state.FailedAttempts)
	}
}

func TestLockoutPolicyCounterRestartsAfterWindow(t *testing.T) {
	policy := LockoutPolicy{MaxAttempts: 2, LockoutDuration: 5 * time.Minute}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	state := policy.OnFailure(LoginState{FailedAttempts: 1}, now)
	if state.LockoutUntil == nil {
		t.Fatal("expected lockout to trigger")
	}

	// Counting starts fresh once the window has elapsed; one more failure
	// must not immediately re-lock.
	later := now.Add(6 * time.Minute)
	user := User{FailedAttempts: state.FailedAttempts, LockoutUntil: state.LockoutUntil}
	if user.IsLocked(later) {
		t.Fatal("lockout should expire silently")
	}

	state = policy.OnFailure(LoginState{FailedAttempts: state.FailedAttempts}, later)
	if state.FailedAttempts != 1 {
		t.Fatalf("expected fresh counter 1, got %d", state.FailedAttempts)
	}
}

func TestLockoutPolicyOnSuccessClearsState(t *testing.T) {
	policy := DefaultLockoutPolicy()
	state := policy.OnSuccess()

	if state.FailedAttempts != 0 || state.LockoutUntil != nil {
		t.Fatalf("expected cleared state, got %+v", state)
	}
}

func TestUserIsLockedBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Minute)
	user := User{LockoutUntil: &until}

	if !user.IsLocked(now) {
		t.Fatal("expected locked before window elapses")
	}
	if user.IsLocked(until) {
		t.Fatal("expected unlocked at the exact expiry instant")
	}
}
