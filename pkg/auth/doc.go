// Package auth issues and resolves bearer sessions.
//
// Tokens look like fld_<base64url(32 random bytes)>. Only the SHA-256 hash is
// stored, alongside a short display prefix:
//
//	sessions := auth.NewSessionStore(db)
//	session, token, err := sessions.Create(ctx, userID, "mobile app", 30*24*time.Hour)
//
// Incoming requests are resolved with Validate, which rejects malformed,
// unknown, revoked and expired tokens and stamps last_used_at:
//
//	session, err := sessions.Validate(ctx, bearer)
//	if errors.Is(err, auth.ErrSessionExpired) { ... }
//
// The resolved user id is then turned into an authz.Actor by the HTTP
// authentication middleware.
package auth
