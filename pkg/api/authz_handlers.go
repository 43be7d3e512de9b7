package api

import (
	"net/http"
	"sort"

	"github.com/platinummonkey/fieldops/pkg/authz"
	"github.com/platinummonkey/fieldops/pkg/httputil"
)

// authorizeRequest asks whether the current actor may perform an action.
// Permission takes the "resource:action" form and wins over Resource/Action.
type authorizeRequest struct {
	Permission string             `json:"permission"`
	Resource   authz.ResourceType `json:"resource"`
	Action     authz.Action       `json:"action"`
	Target     *authz.Resource    `json:"target"`
}

// authorize handles POST /v1/authorize. Denials are answered with 200 and a
// decision body; the caller asked a question rather than attempted the action.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var req authorizeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	perm := authz.Permission{Resource: req.Resource, Action: req.Action}
	if req.Permission != "" {
		parsed, ok := authz.ParsePermission(req.Permission)
		if !ok {
			httputil.WriteBadRequest(w, "permission must have the form resource:action")
			return
		}
		perm = parsed
	}
	if perm.Resource == "" || perm.Action == "" {
		httputil.WriteBadRequest(w, "resource and action are required")
		return
	}
	if req.Target != nil && req.Target.Type == "" {
		req.Target.Type = perm.Resource
	}

	d := s.engine.Evaluate(actor, perm, req.Target)
	s.recorder.RecordDecision(string(perm.Resource), string(perm.Action), d.Outcome(), string(d.Gate))

	httputil.WriteSuccess(w, d)
}

// listPermissions handles GET /v1/permissions
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms := s.engine.Permissions()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.String()
	}
	sort.Strings(out)
	httputil.WriteSuccess(w, map[string]interface{}{
		"permissions": out,
		"roles":       authz.AllRoles,
	})
}

// me handles GET /v1/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, actor)
}
