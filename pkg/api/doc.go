// Package api serves the fieldops HTTP API.
//
// Every route except GET /v1/permissions requires a bearer session token. The
// authenticated actor is resolved once per request and every handler asks the
// authorization engine (directly or through the assessment service) before it
// touches data.
//
//	srv := api.NewServer(api.Config{MaxBodyBytes: 1 << 20, SessionTTL: 30 * 24 * time.Hour}, api.Deps{
//		Assessments: assessmentService,
//		Engine:      engine,
//		Actors:      actorProvider,
//		Roles:       authzStore,
//		Sessions:    sessionStore,
//	})
//	http.ListenAndServe(":8080", srv)
//
// Errors map onto status codes the same way everywhere: missing records are
// 404, authorization denials are 403 with the denying gate in the details,
// validation failures are 422 with per-field rule names, and anything else is
// a logged 500.
//
// POST /v1/authorize answers "may I?" questions with a 200 and the decision
// body even when the answer is no.
//
// NewOpsRouter serves /healthz, /readyz and /metrics on the separate
// operations port.
package api
