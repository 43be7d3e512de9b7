package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/fieldops/pkg/assessment"
	"github.com/platinummonkey/fieldops/pkg/auth"
	"github.com/platinummonkey/fieldops/pkg/authz"
	"github.com/platinummonkey/fieldops/pkg/httputil"
	"github.com/platinummonkey/fieldops/pkg/observability"
)

// forbiddenDetails is the body detail of a 403, naming the gate that denied
type forbiddenDetails struct {
	Permission string     `json:"permission"`
	Gate       authz.Gate `json:"gate"`
}

// writeServiceError maps domain errors onto HTTP responses. Not-found is
// checked first so a missing record never reveals whether access would have
// been granted.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assessment.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, authz.ErrActorNotFound):
		httputil.WriteNotFoundError(w, "user not found")
	case errors.Is(err, auth.ErrSessionNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case authz.IsForbidden(err):
		d, _ := authz.AsForbidden(err)
		resp := httputil.ErrorResponse{Error: "forbidden", Code: "forbidden"}
		if d != nil {
			resp.Error = d.Reason
			resp.Details = forbiddenDetails{Permission: d.Permission.String(), Gate: d.Gate}
		}
		httputil.WriteErrorResponse(w, http.StatusForbidden, resp)
	case assessment.IsValidationFailed(err):
		vf, _ := assessment.AsValidationFailed(err)
		httputil.WriteUnprocessable(w, "validation failed", "validation_failed", vf.Fields(), vf.Violations)
	case assessment.IsInvalidTransition(err):
		httputil.WriteUnprocessable(w, err.Error(), "invalid_transition", nil, nil)
	default:
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		httputil.WriteInternalError(w)
	}
}

// currentActor returns the authenticated actor; the auth middleware
// guarantees one on every /v1 route behind it
func currentActor(w http.ResponseWriter, r *http.Request) (*authz.Actor, bool) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return actor, true
}
