package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/auth"
	"github.com/platinummonkey/fieldops/pkg/httputil"
	"github.com/platinummonkey/fieldops/pkg/middleware"
)

const maxSessionNameLength = 255

// createSession handles POST /v1/sessions. It issues an additional session for
// the authenticated user, e.g. for a second device.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if len(req.Name) > maxSessionNameLength {
		httputil.WriteBadRequest(w, "name must be at most 255 characters")
		return
	}

	ctx := r.Context()
	session, token, err := s.sessions.Create(ctx, actor.ID, req.Name, s.cfg.SessionTTL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventTypeAuthSessionCreate, audit.EventStatusSuccess, actor.ID, actor.CompanyID).
		WithResource("session", strconv.FormatInt(session.ID, 10)).
		WithMessage("session created"))

	// Return the token (only time it's visible)
	httputil.WriteCreated(w, struct {
		*auth.Session
		Token string `json:"token"`
	}{Session: session, Token: token})
}

// revokeCurrentSession handles DELETE /v1/sessions/current
func (s *Server) revokeCurrentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	s.revoke(w, r, session.ID)
}

// revokeSession handles DELETE /v1/sessions/{id}
func (s *Server) revokeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	s.revoke(w, r, id)
}

// revokeAllSessions handles DELETE /v1/sessions, signing the caller out
// everywhere including the session making the request
func (s *Server) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	n, err := s.sessions.RevokeAllForUser(ctx, actor.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventTypeAuthSessionRevoke, audit.EventStatusSuccess, actor.ID, actor.CompanyID).
		WithResource("user", strconv.FormatInt(actor.ID, 10)).
		WithMessage("all sessions revoked").
		WithMetadata("revoked", n))

	httputil.WriteSuccess(w, map[string]int64{"revoked": n})
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request, sessionID int64) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	// scoped to the caller's own sessions; anything else reads as not found
	if err := s.sessions.Revoke(ctx, sessionID, actor.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventTypeAuthSessionRevoke, audit.EventStatusSuccess, actor.ID, actor.CompanyID).
		WithResource("session", strconv.FormatInt(sessionID, 10)).
		WithMessage("session revoked"))

	httputil.WriteNoContent(w)
}
