package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/fieldops/pkg/auth"
	"github.com/platinummonkey/fieldops/pkg/authz"
	"github.com/platinummonkey/fieldops/pkg/contextkeys"
	"github.com/platinummonkey/fieldops/pkg/httputil"
	"github.com/platinummonkey/fieldops/pkg/observability"
)

// SessionValidator resolves a bearer token to a live session
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Session, error)
}

// ActorSource resolves a user id to the actor decisions are made for
type ActorSource interface {
	Actor(ctx context.Context, userID int64) (*authz.Actor, error)
}

// AuthMiddleware authenticates bearer session tokens and places the
// session, the actor and the user id on the request context.
type AuthMiddleware struct {
	sessions SessionValidator
	actors   ActorSource
	log      logrus.FieldLogger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions SessionValidator, actors ActorSource, log logrus.FieldLogger) *AuthMiddleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthMiddleware{
		sessions: sessions,
		actors:   actors,
		log:      log,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "missing or malformed authorization header")
			return
		}

		ctx := r.Context()
		session, err := m.sessions.Validate(ctx, token)
		if err != nil {
			if isSessionRejection(err) {
				httputil.WriteUnauthorized(w, "invalid or expired session")
				return
			}
			m.log.WithError(err).Error("session lookup failed")
			httputil.WriteInternalError(w)
			return
		}

		actor, err := m.actors.Actor(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, authz.ErrActorNotFound) {
				httputil.WriteUnauthorized(w, "account is inactive")
				return
			}
			m.log.WithError(err).WithField("user_id", session.UserID).Error("actor lookup failed")
			httputil.WriteInternalError(w)
			return
		}

		userID := strconv.FormatInt(actor.ID, 10)
		ctx = authz.ContextWithActor(ctx, actor)
		ctx = contextkeys.WithSession(ctx, session)
		ctx = contextkeys.WithUserID(ctx, userID)
		ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithFields(map[string]interface{}{
			"user_id":    userID,
			"company_id": actor.CompanyID,
		}))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the session validated by AuthMiddleware
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(contextkeys.SessionKey).(*auth.Session)
	return session, ok && session != nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isSessionRejection(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrSessionExpired) ||
		errors.Is(err, auth.ErrSessionRevoked) ||
		errors.Is(err, auth.ErrSessionNotFound)
}
