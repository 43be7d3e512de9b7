package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/platinummonkey/fieldops/pkg/assessment"
	"github.com/platinummonkey/fieldops/pkg/httputil"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files
const multipartMemory = 8 << 20

type photosResponse struct {
	Photos   []assessment.Photo     `json:"photos"`
	Warnings []assessment.Violation `json:"warnings,omitempty"`
}

// uploadPhotos handles POST /v1/assessments/{id}/photos. Files are sent as
// "photos" parts, optionally with parallel "photo_types", "descriptions" and
// "location_descriptions" values (a trailing [] on the names is accepted).
func (s *Server) uploadPhotos(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "upload exceeds the request size limit")
			return
		}
		httputil.WriteBadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	up := photoUploadFrom(r.MultipartForm)

	photos, result, err := s.assessments.UploadPhotos(r.Context(), actor, id, up)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, photosResponse{Photos: photos, Warnings: warningsOf(result)})
}

func photoUploadFrom(form *multipart.Form) *assessment.PhotoUpload {
	up := &assessment.PhotoUpload{
		Descriptions:         formValues(form, "descriptions"),
		LocationDescriptions: formValues(form, "location_descriptions"),
	}
	for _, t := range formValues(form, "photo_types") {
		up.PhotoTypes = append(up.PhotoTypes, assessment.PhotoType(t))
	}

	headers := form.File["photos"]
	if len(headers) == 0 {
		headers = form.File["photos[]"]
	}
	for _, fh := range headers {
		fh := fh
		up.Files = append(up.Files, assessment.PhotoFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		})
	}
	return up
}

func formValues(form *multipart.Form, name string) []string {
	if values := form.Value[name]; len(values) > 0 {
		return values
	}
	return form.Value[name+"[]"]
}
