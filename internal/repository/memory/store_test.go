package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/repository"
)

func TestStoreUserLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	user := domain.User{ID: "user-1", Email: "alice@example.com", PasswordHash: "hash"}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := store.Create(ctx, domain.User{ID: "user-2", Email: "Alice@example.com"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	byEmail, err := store.GetByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if byEmail.ID != "user-1" {
		t.Fatalf("unexpected user %q", byEmail.ID)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	until := time.Now().Add(15 * time.Minute).UTC()
	if err := store.UpdateLoginState(ctx, "user-1", domain.LoginState{FailedAttempts: 2, LockoutUntil: &until}); err != nil {
		t.Fatalf("UpdateLoginState returned error: %v", err)
	}

	updated, err := store.GetByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if updated.FailedAttempts != 2 || updated.LockoutUntil == nil {
		t.Fatalf("login state not applied: %+v", updated)
	}

	if err := store.UpdateLoginState(ctx, "missing", domain.LoginState{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRevokeRefreshTokenIsCompareAndSet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	record := domain.RefreshTokenRecord{
		ID:        "rec-1",
		UserID:    "user-1",
		JTI:       "jti-1",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	if err := store.CreateRefreshToken(ctx, record); err != nil {
		t.Fatalf("CreateRefreshToken returned error: %v", err)
	}

	if err := store.RevokeRefreshToken(ctx, "user-1", "jti-1"); err != nil {
		t.Fatalf("first revoke failed: %v", err)
	}
	if err := store.RevokeRefreshToken(ctx, "user-1", "jti-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second revoke should lose, got %v", err)
	}

	stored, err := store.GetRefreshToken(ctx, "user-1", "jti-1")
	if err != nil {
		t.Fatalf("GetRefreshToken returned error: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("record not marked revoked")
	}
}

func TestStoreConcurrentRevokeSingleWinner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	record := domain.RefreshTokenRecord{
		ID:        "rec-1",
		UserID:    "user-1",
		JTI:       "jti-1",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	if err := store.CreateRefreshToken(ctx, record); err != nil {
		t.Fatalf("CreateRefreshToken returned error: %v", err)
	}

	const racers = 32
	var wg sync.WaitGroup
	results := make([]error, racers)

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = store.RevokeRefreshToken(ctx, "user-1", "jti-1")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, res := range results {
		switch {
		case res == nil:
			winners++
		case errors.Is(res, repository.ErrNotFound):
		default:
			t.Fatalf("unexpected racer error: %v", res)
		}
	}

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestStoreDeleteExpired(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	records := []domain.RefreshTokenRecord{
		{ID: "a", UserID: "u", JTI: "expired-1", ExpiresAt: now.Add(-time.Hour)},
		{ID: "b", UserID: "u", JTI: "expired-2", ExpiresAt: now.Add(-time.Minute)},
		{ID: "c", UserID: "u", JTI: "live", ExpiresAt: now.Add(time.Hour)},
	}
	for _, record := range records {
		if err := store.CreateRefreshToken(ctx, record); err != nil {
			t.Fatalf("CreateRefreshToken returned error: %v", err)
		}
	}

	deleted, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	if _, err := store.GetRefreshToken(ctx, "u", "live"); err != nil {
		t.Fatalf("live record should remain: %v", err)
	}
	if _, err := store.GetRefreshToken(ctx, "u", "expired-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expired record should be gone, got %v", err)
	}
}
