// Package contextkeys holds every request-scoped context key in one place so
// packages that cannot import each other (httputil, middleware, authz,
// observability) still agree on them.
//
// Values are stored as interface{} here and typed by the owning package:
//
//	ctx = contextkeys.WithActor(ctx, actor)     // authz.ActorFromContext reads it back
//	ctx = contextkeys.WithSession(ctx, session) // middleware.SessionFromContext reads it back
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey holds the *authz.Actor resolved by middleware.AuthMiddleware
	ActorKey Key = "actor"
	// SessionKey holds the *auth.Session the bearer token resolved to
	SessionKey Key = "session"
	// UserIDKey holds the authenticated user id as a decimal string, for logs
	// and audit events
	UserIDKey Key = "user_id"
	// RequestIDKey holds the X-Request-ID value
	RequestIDKey Key = "request_id"
	// LoggerKey holds the request scoped *observability.Logger
	LoggerKey Key = "logger"
)

// WithActor stores the authenticated actor
func WithActor(ctx context.Context, actor interface{}) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// WithSession stores the validated session
func WithSession(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID returns the request id, or "" outside a request
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetUserID returns the authenticated user id, or "" for anonymous requests
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
