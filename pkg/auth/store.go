package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionStore persists sessions in the sessions table
type SessionStore struct {
	db        *sql.DB
	generator *TokenGenerator
	now       func() time.Time
}

// NewSessionStore creates a session store
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{
		db:        db,
		generator: NewTokenGenerator(),
		now:       time.Now,
	}
}

// Create issues a session for userID. A zero ttl never expires. The returned
// token is the only time the plaintext is available.
func (s *SessionStore) Create(ctx context.Context, userID int64, name string, ttl time.Duration) (*Session, string, error) {
	token, tokenHash, tokenPrefix, err := s.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	session := &Session{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		CreatedAt:   now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		session.ExpiresAt = &expires
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		session.UserID, session.TokenHash, session.TokenPrefix, session.Name, session.ExpiresAt, session.CreatedAt,
	).Scan(&session.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	return session, token, nil
}

// Validate resolves a bearer token to a live session and stamps last_used_at
func (s *SessionStore) Validate(ctx context.Context, token string) (*Session, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	session := &Session{TokenHash: s.generator.HashToken(token)}
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_prefix, name, expires_at, last_used_at, created_at, revoked_at
		FROM sessions WHERE token_hash = $1`, session.TokenHash,
	).Scan(&session.ID, &session.UserID, &session.TokenPrefix, &session.Name,
		&expiresAt, &lastUsedAt, &session.CreatedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	session.ExpiresAt = nullTime(expiresAt)
	session.LastUsedAt = nullTime(lastUsedAt)
	session.RevokedAt = nullTime(revokedAt)

	now := s.now().UTC()
	if session.IsRevoked() {
		return nil, ErrSessionRevoked
	}
	if session.IsExpired(now) {
		return nil, ErrSessionExpired
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = $1 WHERE id = $2`, now, session.ID); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	session.LastUsedAt = &now
	return session, nil
}

// Revoke ends a session owned by userID
func (s *SessionStore) Revoke(ctx context.Context, sessionID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL`,
		s.now().UTC(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllForUser ends every live session of a user, returning how many
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`,
		s.now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return res.RowsAffected()
}

// CleanupExpired deletes sessions that expired before now, returning how many
func (s *SessionStore) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return res.RowsAffected()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
