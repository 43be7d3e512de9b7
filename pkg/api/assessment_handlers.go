package api

import (
	"net/http"

	"github.com/platinummonkey/fieldops/pkg/assessment"
	"github.com/platinummonkey/fieldops/pkg/httputil"
)

// assessmentResponse wraps a written assessment with any non-blocking warnings
type assessmentResponse struct {
	Assessment *assessment.Assessment `json:"assessment"`
	Warnings   []assessment.Violation `json:"warnings,omitempty"`
}

type sectionResponse struct {
	Section  *assessment.Section    `json:"section"`
	Warnings []assessment.Violation `json:"warnings,omitempty"`
}

func warningsOf(result *assessment.Result) []assessment.Violation {
	if result == nil {
		return nil
	}
	return result.Warnings
}

// listAssessments handles GET /v1/assessments?status=&limit=
func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	status := assessment.Status(httputil.ParseQueryString(r, "status", ""))
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		httputil.WriteBadRequest(w, "limit must be a non-negative integer")
		return
	}

	list, err := s.assessments.List(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if status != "" {
		filtered := make([]*assessment.Assessment, 0, len(list))
		for _, a := range list {
			if a.Status == status {
				filtered = append(filtered, a)
			}
		}
		list = filtered
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"assessments": list,
		"count":       len(list),
	})
}

// createAssessment handles POST /v1/assessments
func (s *Server) createAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var p assessment.Payload
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}

	a, result, err := s.assessments.Create(r.Context(), actor, &p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, assessmentResponse{Assessment: a, Warnings: warningsOf(result)})
}

// getAssessment handles GET /v1/assessments/{id}
func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	a, err := s.assessments.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, a)
}

// updateAssessment handles PATCH /v1/assessments/{id}
func (s *Server) updateAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var p assessment.Payload
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}

	a, result, err := s.assessments.Update(r.Context(), actor, id, &p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, assessmentResponse{Assessment: a, Warnings: warningsOf(result)})
}

// deleteAssessment handles DELETE /v1/assessments/{id}
func (s *Server) deleteAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.assessments.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// changeStatus handles POST /v1/assessments/{id}/status
func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Status               assessment.Status `json:"status"`
		CompletionPercentage *int              `json:"completion_percentage"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Status == "" {
		httputil.WriteBadRequest(w, "status is required")
		return
	}

	a, result, err := s.assessments.ChangeStatus(r.Context(), actor, id, req.Status, req.CompletionPercentage)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, assessmentResponse{Assessment: a, Warnings: warningsOf(result)})
}

// approveAssessment handles POST /v1/assessments/{id}/approve
func (s *Server) approveAssessment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	a, err := s.assessments.Approve(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, assessmentResponse{Assessment: a})
}

// createSection handles POST /v1/assessments/{id}/sections
func (s *Server) createSection(w http.ResponseWriter, r *http.Request) {
	s.saveSection(w, r, false)
}

// updateSection handles PUT/PATCH /v1/assessments/{id}/sections/{sectionId}
func (s *Server) updateSection(w http.ResponseWriter, r *http.Request) {
	s.saveSection(w, r, true)
}

func (s *Server) saveSection(w http.ResponseWriter, r *http.Request, existing bool) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var sectionID int64
	if existing {
		if sectionID, ok = httputil.ParsePathInt64OrError(w, r, "sectionId"); !ok {
			return
		}
	}

	var p assessment.SectionPayload
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}

	section, result, err := s.assessments.SaveSection(r.Context(), actor, id, sectionID, &p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := sectionResponse{Section: section, Warnings: warningsOf(result)}
	if existing {
		httputil.WriteSuccess(w, resp)
		return
	}
	httputil.WriteCreated(w, resp)
}

// deleteSection handles DELETE /v1/assessments/{id}/sections/{sectionId}
func (s *Server) deleteSection(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	sectionID, ok := httputil.ParsePathInt64OrError(w, r, "sectionId")
	if !ok {
		return
	}

	if err := s.assessments.DeleteSection(r.Context(), actor, id, sectionID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}
