// Package httputil holds the JSON response writers, request parsing helpers
// and generic middleware shared by the fieldops HTTP surfaces.
//
// Every error body has the shape of ErrorResponse:
//
//	{"error": "validation failed", "code": "validation_failed",
//	 "fields": {"assessment_date": ["must not be in the past"]}}
//
// Handlers parse input with ParseJSONOrError and ParsePathInt64OrError, which
// write a 400 themselves and report false:
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	if !ok {
//		return
//	}
//
// Middleware composes with Chain, outermost first:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// Authentication and authorization live in pkg/middleware and pkg/authz;
// this package must not import either.
package httputil
