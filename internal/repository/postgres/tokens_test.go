package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/repository"
)

func TestTokenRepositoryCreateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	now := time.Now().UTC()
	record := domain.RefreshTokenRecord{
		ID:        "rec-1",
		UserID:    "user-1",
		JTI:       "jti-1",
		CreatedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO auth\.refresh_tokens`).
		WithArgs(record.ID, record.UserID, record.JTI, record.CreatedAt, record.ExpiresAt, record.Revoked).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.CreateRefreshToken(context.Background(), record); err != nil {
		t.Fatalf("CreateRefreshToken returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepositoryGetRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "user_id", "jti", "created_at", "expires_at", "revoked"}).
		AddRow("rec-1", "user-1", "jti-1", now, now.Add(time.Hour), false)

	mock.ExpectQuery(`SELECT .+ FROM auth\.refresh_tokens`).
		WithArgs("jti-1", "user-1").
		WillReturnRows(rows)

	record, err := repo.GetRefreshToken(context.Background(), "user-1", "jti-1")
	if err != nil {
		t.Fatalf("GetRefreshToken returned error: %v", err)
	}
	if record.JTI != "jti-1" || record.Revoked {
		t.Fatalf("unexpected record: %+v", record)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepositoryGetRefreshTokenNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM auth\.refresh_tokens`).
		WithArgs("missing", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "jti", "created_at", "expires_at", "revoked"}))

	if _, err := repo.GetRefreshToken(context.Background(), "user-1", "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRepositoryRevokeRefreshTokenWinner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	mock.ExpectExec(`UPDATE auth\.refresh_tokens SET revoked`).
		WithArgs(true, "jti-1", false, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.RevokeRefreshToken(context.Background(), "user-1", "jti-1"); err != nil {
		t.Fatalf("RevokeRefreshToken returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepositoryRevokeRefreshTokenLoser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	// Zero rows affected means the record was already revoked or never
	// existed; the caller must observe a loss.
	mock.ExpectExec(`UPDATE auth\.refresh_tokens SET revoked`).
		WithArgs(true, "jti-1", false, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.RevokeRefreshToken(context.Background(), "user-1", "jti-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRepositoryDeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	cutoff := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM auth\.refresh_tokens`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := repo.DeleteExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
}
