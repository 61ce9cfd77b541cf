// Package memory provides mutex-guarded in-process implementations of the
// persistence ports. It backs the memory storage driver and doubles as the
// reference model for the postgres repository tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/repository"
)

// Store holds users and refresh token records behind a single mutex.
type Store struct {
	mu     sync.Mutex
	users  map[string]domain.User              // keyed by user ID
	emails map[string]string                   // normalized email -> user ID
	tokens map[tokenKey]domain.RefreshTokenRecord
}

type tokenKey struct {
	userID string
	jti    string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:  make(map[string]domain.User),
		emails: make(map[string]string),
		tokens: make(map[tokenKey]domain.RefreshTokenRecord),
	}
}

func (s *Store) Create(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.emails[email]; exists {
		return repository.ErrConflict
	}
	if _, exists := s.users[user.ID]; exists {
		return repository.ErrConflict
	}

	s.users[user.ID] = user
	s.emails[email] = user.ID
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) UpdateLoginState(_ context.Context, id string, state domain.LoginState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.FailedAttempts = state.FailedAttempts
	user.LockoutUntil = state.LockoutUntil
	user.UpdatedAt = time.Now().UTC()
	s.users[id] = user
	return nil
}

func (s *Store) CreateRefreshToken(_ context.Context, record domain.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{userID: record.UserID, jti: record.JTI}
	if _, exists := s.tokens[key]; exists {
		return repository.ErrConflict
	}
	s.tokens[key] = record
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, userID, jti string) (*domain.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[tokenKey{userID: userID, jti: jti}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := record
	return &copied, nil
}

// RevokeRefreshToken flips revoked from false to true while the mutex is held,
// so concurrent rotations of the same token observe exactly one success.
func (s *Store) RevokeRefreshToken(_ context.Context, userID, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{userID: userID, jti: jti}
	record, ok := s.tokens[key]
	if !ok || record.Revoked {
		return repository.ErrNotFound
	}
	record.Revoked = true
	s.tokens[key] = record
	return nil
}

func (s *Store) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, record := range s.tokens {
		if record.ExpiresAt.Before(before) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
