package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/fieldops/pkg/assessment"
	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/auth"
	"github.com/platinummonkey/fieldops/pkg/authz"
	"github.com/platinummonkey/fieldops/pkg/httputil"
	"github.com/platinummonkey/fieldops/pkg/middleware"
	"github.com/platinummonkey/fieldops/pkg/observability"
)

// AssessmentService is the assessment pipeline the handlers drive
type AssessmentService interface {
	Get(ctx context.Context, actor *authz.Actor, id int64) (*assessment.Assessment, error)
	List(ctx context.Context, actor *authz.Actor) ([]*assessment.Assessment, error)
	Create(ctx context.Context, actor *authz.Actor, p *assessment.Payload) (*assessment.Assessment, *assessment.Result, error)
	Update(ctx context.Context, actor *authz.Actor, id int64, p *assessment.Payload) (*assessment.Assessment, *assessment.Result, error)
	ChangeStatus(ctx context.Context, actor *authz.Actor, id int64, to assessment.Status, completion *int) (*assessment.Assessment, *assessment.Result, error)
	Delete(ctx context.Context, actor *authz.Actor, id int64) error
	Approve(ctx context.Context, actor *authz.Actor, id int64) (*assessment.Assessment, error)
	SaveSection(ctx context.Context, actor *authz.Actor, assessmentID, sectionID int64, p *assessment.SectionPayload) (*assessment.Section, *assessment.Result, error)
	DeleteSection(ctx context.Context, actor *authz.Actor, assessmentID, sectionID int64) error
	UploadPhotos(ctx context.Context, actor *authz.Actor, assessmentID int64, up *assessment.PhotoUpload) ([]assessment.Photo, *assessment.Result, error)
}

// ActorDirectory resolves and invalidates cached actors
type ActorDirectory interface {
	Actor(ctx context.Context, userID int64) (*authz.Actor, error)
	Invalidate(ctx context.Context, userID int64) error
}

// RoleStore persists role grants
type RoleStore interface {
	AssignRole(ctx context.Context, userID int64, role authz.Role) error
	RevokeRole(ctx context.Context, userID int64, role authz.Role) error
}

// SessionManager issues, validates and revokes bearer sessions
type SessionManager interface {
	Create(ctx context.Context, userID int64, name string, ttl time.Duration) (*auth.Session, string, error)
	Validate(ctx context.Context, token string) (*auth.Session, error)
	Revoke(ctx context.Context, sessionID, userID int64) error
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
}

// DecisionRecorder receives authorization decisions made by the handlers
type DecisionRecorder interface {
	RecordDecision(resource, action, outcome, gate string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string, string, string, string) {}

// Config holds HTTP-level settings of the API
type Config struct {
	// MaxBodyBytes caps JSON request bodies
	MaxBodyBytes int64
	// MaxUploadBytes caps multipart photo uploads
	MaxUploadBytes int64
	CORSOrigins    []string
	SessionTTL     time.Duration
	// FailOpen lets requests through when the rate limiter is unavailable
	FailOpen bool
}

// Deps are the collaborators of the API server. ActorLimiter and
// AnonymousLimiter may be nil to disable rate limiting; Metrics may be nil.
type Deps struct {
	Assessments      AssessmentService
	Engine           *authz.Engine
	Actors           ActorDirectory
	Roles            RoleStore
	Sessions         SessionManager
	Audit            audit.Logger
	Recorder         DecisionRecorder
	Metrics          *observability.Metrics
	ActorLimiter     middleware.Limiter
	AnonymousLimiter middleware.Limiter
	Logger           *observability.Logger
}

// Server represents our API server
type Server struct {
	cfg         Config
	router      *mux.Router
	handler     http.Handler
	assessments AssessmentService
	engine      *authz.Engine
	actors      ActorDirectory
	roles       RoleStore
	sessions    SessionManager
	audit       audit.Logger
	recorder    DecisionRecorder
	logger      *observability.Logger
}

// NewServer creates a new API server with every route registered
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoOp()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = cfg.MaxBodyBytes
	}

	s := &Server{
		cfg:         cfg,
		router:      mux.NewRouter(),
		assessments: deps.Assessments,
		engine:      deps.Engine,
		actors:      deps.Actors,
		roles:       deps.Roles,
		sessions:    deps.Sessions,
		audit:       deps.Audit,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
	}

	s.setupRoutes(deps)

	s.handler = otelhttp.NewHandler(httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		observability.RecoveryMiddleware(s.logger),
		httputil.CORSMiddleware(cfg.CORSOrigins),
	)(s.router), "fieldops-api")

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Deps) {
	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	limit := func(h http.Handler) http.Handler { return h }
	if deps.ActorLimiter != nil && deps.AnonymousLimiter != nil {
		limit = middleware.NewRateLimitMiddleware(deps.ActorLimiter, deps.AnonymousLimiter, s.cfg.FailOpen, s.logger.Entry()).Handler
	}
	jsonBody := httputil.MaxBytesMiddleware(s.cfg.MaxBodyBytes)

	// Public routes
	s.router.Handle("/v1/permissions", limit(http.HandlerFunc(s.listPermissions))).Methods(http.MethodGet)

	authn := middleware.NewAuthMiddleware(s.sessions, s.actors, s.logger.Entry())
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(authn.Handler, limit)

	// Authorization routes
	v1.Handle("/authorize", jsonBody(http.HandlerFunc(s.authorize))).Methods(http.MethodPost)
	v1.HandleFunc("/me", s.me).Methods(http.MethodGet)

	// Assessment routes
	v1.HandleFunc("/assessments", s.listAssessments).Methods(http.MethodGet)
	v1.Handle("/assessments", jsonBody(http.HandlerFunc(s.createAssessment))).Methods(http.MethodPost)
	v1.HandleFunc("/assessments/{id}", s.getAssessment).Methods(http.MethodGet)
	v1.Handle("/assessments/{id}", jsonBody(http.HandlerFunc(s.updateAssessment))).Methods(http.MethodPatch)
	v1.HandleFunc("/assessments/{id}", s.deleteAssessment).Methods(http.MethodDelete)
	v1.Handle("/assessments/{id}/status", jsonBody(http.HandlerFunc(s.changeStatus))).Methods(http.MethodPost)
	v1.HandleFunc("/assessments/{id}/approve", s.approveAssessment).Methods(http.MethodPost)

	// Section routes
	v1.Handle("/assessments/{id}/sections", jsonBody(http.HandlerFunc(s.createSection))).Methods(http.MethodPost)
	v1.Handle("/assessments/{id}/sections/{sectionId}", jsonBody(http.HandlerFunc(s.updateSection))).Methods(http.MethodPut, http.MethodPatch)
	v1.HandleFunc("/assessments/{id}/sections/{sectionId}", s.deleteSection).Methods(http.MethodDelete)

	// Photo routes
	v1.Handle("/assessments/{id}/photos",
		httputil.MaxBytesMiddleware(s.cfg.MaxUploadBytes)(http.HandlerFunc(s.uploadPhotos))).Methods(http.MethodPost)

	// User role routes
	v1.Handle("/users/{id}/roles", jsonBody(http.HandlerFunc(s.assignRole))).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id}/roles/{role}", s.revokeRole).Methods(http.MethodDelete)

	// Session routes
	v1.Handle("/sessions", jsonBody(http.HandlerFunc(s.createSession))).Methods(http.MethodPost)
	v1.HandleFunc("/sessions", s.revokeAllSessions).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/current", s.revokeCurrentSession).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{id:[0-9]+}", s.revokeSession).Methods(http.MethodDelete)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mostly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// NewOpsRouter serves liveness, readiness and Prometheus metrics on the
// operations port
func NewOpsRouter(checker *observability.HealthChecker, registry *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)
	if registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}
	return router
}
