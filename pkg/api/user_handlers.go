package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/authz"
	"github.com/platinummonkey/fieldops/pkg/httputil"
	"github.com/platinummonkey/fieldops/pkg/observability"
)

// assignRole handles POST /v1/users/{id}/roles
func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role authz.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s.changeRole(w, r, req.Role, true)
}

// revokeRole handles DELETE /v1/users/{id}/roles/{role}
func (s *Server) revokeRole(w http.ResponseWriter, r *http.Request) {
	s.changeRole(w, r, authz.Role(mux.Vars(r)["role"]), false)
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request, role authz.Role, grant bool) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !role.Valid() {
		httputil.WriteBadRequest(w, "unknown role: "+string(role))
		return
	}

	ctx := r.Context()
	target, err := s.actors.Actor(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// the requested role counts as held so granting superadmin needs a superadmin
	resource := &authz.Resource{
		Type:      authz.ResourceUser,
		ID:        userID,
		CompanyID: target.CompanyID,
		Roles:     append(append([]authz.Role(nil), target.Roles...), role),
	}
	perm := authz.Permission{Resource: authz.ResourceUser, Action: authz.ActionAssignRole}
	d := s.engine.Evaluate(actor, perm, resource)
	s.recorder.RecordDecision(string(perm.Resource), string(perm.Action), d.Outcome(), string(d.Gate))
	if !d.Allowed {
		s.logAudit(ctx, audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied, actor.ID, actor.CompanyID).
			WithResource(string(authz.ResourceUser), strconv.FormatInt(userID, 10)).
			WithMessage(d.Reason).
			WithMetadata("permission", perm.String()).
			WithMetadata("gate", string(d.Gate)))
		// users of other companies answer like unknown ids
		if d.Gate == authz.GateTenant {
			writeServiceError(w, r, authz.ErrActorNotFound)
			return
		}
		writeServiceError(w, r, d.Err())
		return
	}

	if grant {
		err = s.roles.AssignRole(ctx, userID, role)
	} else {
		err = s.roles.RevokeRole(ctx, userID, role)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// stale roles must not outlive the change on this instance
	if err := s.actors.Invalidate(ctx, userID); err != nil {
		observability.GetLogger(ctx).WithError(err).WithField("target_user_id", userID).Warn("failed to invalidate cached actor")
	}

	op := "revoke"
	if grant {
		op = "grant"
	}
	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventTypeAuthzRoleChange, audit.EventStatusSuccess, actor.ID, actor.CompanyID).
		WithResource(string(authz.ResourceUser), strconv.FormatInt(userID, 10)).
		WithMessage("role "+op).
		WithMetadata("role", string(role)).
		WithMetadata("operation", op))

	updated, err := s.actors.Actor(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (s *Server) logAudit(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		observability.GetLogger(ctx).WithError(err).WithField("event_type", event.EventType).Warn("failed to write audit event")
	}
}
