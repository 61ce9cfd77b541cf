package domain

import "time"

// RefreshTokenRecord is the persisted side of an issued refresh token. Only
// the token identifier and expiry are stored; the signed credential itself
// never touches the database.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	JTI       string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// IsExpired reports whether the record has elapsed its validity window.
func (r RefreshTokenRecord) IsExpired(at time.Time) bool {
	return !r.ExpiresAt.After(at)
}

// IsLive reports whether the record can still be presented for rotation.
func (r RefreshTokenRecord) IsLive(at time.Time) bool {
	return !r.Revoked && !r.IsExpired(at)
}
