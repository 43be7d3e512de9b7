package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidToken covers malformed and unknown tokens alike
	ErrInvalidToken = errors.New("invalid session token")
	// ErrSessionExpired is returned for a session past its expiry
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned for a revoked session
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionNotFound is returned when revoking an unknown session
	ErrSessionNotFound = errors.New("session not found")
)

// Session is a bearer credential issued to a user. Only the SHA-256 hash of
// the token is stored.
type Session struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// IsExpired reports whether the session has an expiry at or before now
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// IsRevoked reports whether the session was revoked
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}
