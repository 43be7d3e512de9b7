package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*SessionStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSessionStore(db)
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

var sessionColumns = []string{"id", "user_id", "token_prefix", "name", "expires_at", "last_used_at", "created_at", "revoked_at"}

func TestSessionStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), "mobile", fixedNow.Add(time.Hour), fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	session, token, err := store.Create(context.Background(), 7, "mobile", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(42), session.ID)
	assert.Equal(t, store.generator.HashToken(token), session.TokenHash)
	require.NotNil(t, session.ExpiresAt)
	assert.Equal(t, fixedNow.Add(time.Hour), *session.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_CreateWithoutExpiry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), "cli", nil, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	session, _, err := store.Create(context.Background(), 7, "cli", 0)
	require.NoError(t, err)
	assert.Nil(t, session.ExpiresAt)
}

func TestSessionStore_Validate(t *testing.T) {
	tg := NewTokenGenerator()
	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	lookup := regexp.QuoteMeta("FROM sessions WHERE token_hash = $1")

	t.Run("live session", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(lookup).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(sessionColumns).AddRow(3, 7, prefix, "web", fixedNow.Add(time.Hour), nil, fixedNow.Add(-time.Hour), nil))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET last_used_at")).
			WithArgs(fixedNow, int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

		session, err := store.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, int64(7), session.UserID)
		require.NotNil(t, session.LastUsedAt)
		assert.Equal(t, fixedNow, *session.LastUsedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed token never hits the database", func(t *testing.T) {
		store, mock := newMockStore(t)
		_, err := store.Validate(context.Background(), "Bearer nonsense")
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(lookup).WithArgs(hash).WillReturnRows(sqlmock.NewRows(sessionColumns))

		_, err := store.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(lookup).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(sessionColumns).AddRow(3, 7, prefix, "web", fixedNow.Add(-time.Minute), nil, fixedNow.Add(-time.Hour), nil))

		_, err := store.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("revoked", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(lookup).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(sessionColumns).AddRow(3, 7, prefix, "web", nil, nil, fixedNow.Add(-time.Hour), fixedNow.Add(-time.Minute)))

		_, err := store.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("database error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(lookup).WithArgs(hash).WillReturnError(errors.New("connection reset"))

		_, err := store.Validate(context.Background(), token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestSessionStore_Revoke(t *testing.T) {
	revoke := regexp.QuoteMeta("UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND user_id = $3")

	t.Run("revokes", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(revoke).WithArgs(fixedNow, int64(3), int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, store.Revoke(context.Background(), 3, 7))
	})

	t.Run("someone else's session", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(revoke).WithArgs(fixedNow, int64(3), int64(8)).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, store.Revoke(context.Background(), 3, 8), ErrSessionNotFound)
	})
}

func TestSessionStore_RevokeAllForUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET revoked_at = $1 WHERE user_id = $2")).
		WithArgs(fixedNow, int64(7)).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.RevokeAllForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSessionStore_CleanupExpired(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < $1")).
		WithArgs(fixedNow).WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := store.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
