package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/fieldops/pkg/async"
	"github.com/platinummonkey/fieldops/pkg/audit"
	"github.com/platinummonkey/fieldops/pkg/authz"
)

const tracerName = "github.com/platinummonkey/fieldops/pkg/assessment"

const (
	blobWorkers = 4
	blobTimeout = 30 * time.Second
)

// Recorder receives decision, validation and transition measurements
type Recorder interface {
	RecordDecision(resource, action, outcome, gate string)
	RecordValidationFailure(entity string, categories []string)
	RecordTransition(from, to string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string, string, string, string) {}
func (nopRecorder) RecordValidationFailure(string, []string)      {}
func (nopRecorder) RecordTransition(string, string)               {}

// Service runs every assessment operation through the same pipeline:
// load (NotFound) -> authorize -> validate -> persist -> audit
type Service struct {
	repo      Repository
	photos    PhotoStore
	engine    *authz.Engine
	validator *Validator
	audit     audit.Logger
	metrics   Recorder
	log       logrus.FieldLogger
	tracer    trace.Tracer
	now       func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithPhotoStore sets where uploaded photo blobs are written
func WithPhotoStore(store PhotoStore) ServiceOption {
	return func(s *Service) {
		s.photos = store
	}
}

// WithAuditLogger sets the audit trail destination
func WithAuditLogger(l audit.Logger) ServiceOption {
	return func(s *Service) {
		s.audit = l
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		s.metrics = r
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(log logrus.FieldLogger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates an assessment service
func NewService(repo Repository, engine *authz.Engine, validator *Validator, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		engine:    engine,
		validator: validator,
		audit:     audit.NoOp(),
		metrics:   nopRecorder{},
		log:       logrus.StandardLogger(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "assessment")
	return s
}

// Engine returns the authorization engine the service decides with
func (s *Service) Engine() *authz.Engine {
	return s.engine
}

// Get returns an assessment the actor may view
func (s *Service) Get(ctx context.Context, actor *authz.Actor, id int64) (*Assessment, error) {
	ctx, span := s.start(ctx, "Get", id)
	defer span.End()

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.authorize(ctx, actor, authz.ActionView, a.Resource()); err != nil {
		return nil, s.fail(span, err)
	}
	return a, nil
}

// List returns the assessments of the actor's company that the actor may view
func (s *Service) List(ctx context.Context, actor *authz.Actor) ([]*Assessment, error) {
	ctx, span := s.start(ctx, "List", 0)
	defer span.End()

	if err := s.authorize(ctx, actor, authz.ActionViewAny, nil); err != nil {
		return nil, s.fail(span, err)
	}
	all, err := s.repo.List(ctx, actor.CompanyID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to list assessments: %w", err))
	}
	visible := make([]*Assessment, 0, len(all))
	for _, a := range all {
		if s.engine.Can(actor, authz.ResourceAssessment, authz.ActionView, a.Resource()) {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// Create validates and stores a new draft assessment owned by the actor
func (s *Service) Create(ctx context.Context, actor *authz.Actor, p *Payload) (*Assessment, *Result, error) {
	ctx, span := s.start(ctx, "Create", 0)
	defer span.End()

	target := &authz.Resource{Type: authz.ResourceAssessment, CompanyID: companyOf(actor)}
	if err := s.authorize(ctx, actor, authz.ActionCreate, target); err != nil {
		return nil, nil, s.fail(span, err)
	}
	if assignsOnCreate(actor, p) {
		creator := idOf(actor)
		target := &authz.Resource{
			Type:      authz.ResourceAssessment,
			CompanyID: companyOf(actor),
			CreatedBy: &creator,
			Status:    string(StatusDraft),
		}
		if err := s.authorize(ctx, actor, authz.ActionAssign, target); err != nil {
			return nil, nil, s.fail(span, err)
		}
	}

	result, err := s.validator.Validate(ctx, nil, p, actor)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	leadOwner, err := s.resolveLead(ctx, companyOf(actor), nil, result)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	if !result.Valid() {
		return nil, result, s.fail(span, s.rejected(ctx, actor, "assessment", 0, result))
	}

	creator := actor.ID
	a := result.Payload.ApplyTo(&Assessment{
		CompanyID: actor.CompanyID,
		CreatedBy: &creator,
		Status:    StatusDraft,
	})
	a.LeadOwnerID = leadOwner
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, nil, s.fail(span, fmt.Errorf("failed to create assessment: %w", err))
	}

	s.record(ctx, actor, audit.EventTypeAssessmentCreate, a.ID, "assessment created", func(e *audit.AuditEvent) {
		e.WithMetadata("service_type", a.ServiceType)
	})
	return a, result, nil
}

// Update applies a partial update. A status change inside the payload must
// also pass the change_status policy and the transition graph.
func (s *Service) Update(ctx context.Context, actor *authz.Actor, id int64, p *Payload) (*Assessment, *Result, error) {
	ctx, span := s.start(ctx, "Update", id)
	defer span.End()

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}

	changes := p.Normalize(existing).Changes(existing)
	target := existing.Resource()
	target.Changes = changes
	if err := s.authorize(ctx, actor, authz.ActionUpdate, target); err != nil {
		return nil, nil, s.fail(span, err)
	}
	statusChange := p.Status != nil && *p.Status != existing.Status
	if statusChange {
		if err := s.authorize(ctx, actor, authz.ActionChangeStatus, existing.Resource()); err != nil {
			return nil, nil, s.fail(span, err)
		}
	}
	if reassigns(existing, p) {
		if err := s.authorize(ctx, actor, authz.ActionAssign, existing.Resource()); err != nil {
			return nil, nil, s.fail(span, err)
		}
	}

	return s.apply(ctx, span, actor, existing, p, audit.EventTypeAssessmentUpdate, changes)
}

// ChangeStatus moves the assessment along the status graph
func (s *Service) ChangeStatus(ctx context.Context, actor *authz.Actor, id int64, to Status, completion *int) (*Assessment, *Result, error) {
	ctx, span := s.start(ctx, "ChangeStatus", id)
	defer span.End()

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	if err := s.authorize(ctx, actor, authz.ActionChangeStatus, existing.Resource()); err != nil {
		return nil, nil, s.fail(span, err)
	}

	p := &Payload{Status: &to, CompletionPercentage: completion}
	return s.apply(ctx, span, actor, existing, p, audit.EventTypeAssessmentStatusChange, p.Changes(existing))
}

func (s *Service) apply(ctx context.Context, span trace.Span, actor *authz.Actor, existing *Assessment, p *Payload, event audit.EventType, changes []string) (*Assessment, *Result, error) {
	result, err := s.validator.Validate(ctx, existing, p, actor)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	leadOwner, err := s.resolveLead(ctx, existing.CompanyID, existing, result)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	if !result.Valid() {
		return nil, result, s.fail(span, s.rejected(ctx, actor, "assessment", existing.ID, result))
	}

	updated := result.Payload.ApplyTo(existing)
	if leadChanged(existing, result.Payload) {
		updated.LeadOwnerID = leadOwner
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, nil, s.fail(span, fmt.Errorf("failed to update assessment %d: %w", existing.ID, err))
	}

	if updated.Status != existing.Status {
		s.metrics.RecordTransition(string(existing.Status), string(updated.Status))
		if event != audit.EventTypeAssessmentStatusChange {
			s.record(ctx, actor, audit.EventTypeAssessmentStatusChange, existing.ID, "status changed", transitionMeta(existing, updated))
		}
	}
	s.record(ctx, actor, event, existing.ID, "assessment "+eventVerb(event), func(e *audit.AuditEvent) {
		e.WithMetadata("fields", changes)
		e.Changes = s.diff(existing, updated, changes)
	})
	return updated, result, nil
}

// Delete removes an assessment and its photo blobs
func (s *Service) Delete(ctx context.Context, actor *authz.Actor, id int64) error {
	ctx, span := s.start(ctx, "Delete", id)
	defer span.End()

	a, err := s.load(ctx, id)
	if err != nil {
		return s.fail(span, err)
	}
	if err := s.authorize(ctx, actor, authz.ActionDelete, a.Resource()); err != nil {
		return s.fail(span, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail(span, fmt.Errorf("failed to delete assessment %d: %w", id, err))
	}

	if s.photos != nil {
		s.discard(ctx, a.Photos)
	}

	s.record(ctx, actor, audit.EventTypeAssessmentDelete, id, "assessment deleted", func(e *audit.AuditEvent) {
		e.WithMetadata("photos", len(a.Photos))
	})
	return nil
}

// Approve records a manager's sign-off on a completed assessment
func (s *Service) Approve(ctx context.Context, actor *authz.Actor, id int64) (*Assessment, error) {
	ctx, span := s.start(ctx, "Approve", id)
	defer span.End()

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.authorize(ctx, actor, authz.ActionApprove, a.Resource()); err != nil {
		return nil, s.fail(span, err)
	}

	approver := actor.ID
	approvedAt := s.now().UTC()
	a.ApprovedBy = &approver
	a.ApprovedAt = &approvedAt
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, s.fail(span, fmt.Errorf("failed to approve assessment %d: %w", id, err))
	}

	s.record(ctx, actor, audit.EventTypeAssessmentApprove, id, "assessment approved", nil)
	return a, nil
}

// SaveSection creates (sectionID 0) or updates a section of an assessment
func (s *Service) SaveSection(ctx context.Context, actor *authz.Actor, assessmentID, sectionID int64, p *SectionPayload) (*Section, *Result, error) {
	ctx, span := s.start(ctx, "SaveSection", assessmentID)
	defer span.End()

	parent, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}

	action := authz.ActionCreate
	base := Section{AssessmentID: assessmentID}
	var existing *Section
	if sectionID != 0 {
		found, ok := parent.Section(sectionID)
		if !ok {
			return nil, nil, s.fail(span, ErrNotFound)
		}
		existing = found
		base = *found
		action = authz.ActionUpdate
	}
	if err := s.authorize(ctx, actor, action, base.Resource(parent)); err != nil {
		return nil, nil, s.fail(span, err)
	}

	result := s.validator.ValidateSection(parent, existing, p)
	if !result.Valid() {
		return nil, result, s.fail(span, s.rejected(ctx, actor, "assessment_section", assessmentID, result))
	}

	if existing == nil && p.SortOrder == nil {
		base.SortOrder = nextSortOrder(parent)
	}
	section := p.ApplyTo(base)
	if section.Status == SectionCompleted && section.CompletedAt == nil {
		completedAt := s.now().UTC()
		section.CompletedAt = &completedAt
	} else if section.Status != SectionCompleted {
		section.CompletedAt = nil
	}
	if err := s.repo.SaveSection(ctx, &section); err != nil {
		return nil, nil, s.fail(span, fmt.Errorf("failed to save section: %w", err))
	}

	s.record(ctx, actor, audit.EventTypeSectionSave, assessmentID, "section saved", func(e *audit.AuditEvent) {
		e.WithMetadata("section_id", section.ID).WithMetadata("created", existing == nil)
	})
	return &section, result, nil
}

// DeleteSection removes a section that no other section depends on
func (s *Service) DeleteSection(ctx context.Context, actor *authz.Actor, assessmentID, sectionID int64) error {
	ctx, span := s.start(ctx, "DeleteSection", assessmentID)
	defer span.End()

	parent, err := s.load(ctx, assessmentID)
	if err != nil {
		return s.fail(span, err)
	}
	section, ok := parent.Section(sectionID)
	if !ok {
		return s.fail(span, ErrNotFound)
	}
	if err := s.authorize(ctx, actor, authz.ActionDelete, section.Resource(parent)); err != nil {
		return s.fail(span, err)
	}

	if names := SectionDependents(parent, sectionID); len(names) > 0 {
		result := &Result{}
		result.addError("section", "has_dependents", CategoryConflict,
			"section is a dependency of %s", strings.Join(names, ", "))
		return s.fail(span, s.rejected(ctx, actor, "assessment_section", assessmentID, result))
	}

	if err := s.repo.DeleteSection(ctx, assessmentID, sectionID); err != nil {
		return s.fail(span, fmt.Errorf("failed to delete section %d: %w", sectionID, err))
	}
	s.record(ctx, actor, audit.EventTypeSectionDelete, assessmentID, "section deleted", func(e *audit.AuditEvent) {
		e.WithMetadata("section_id", sectionID)
	})
	return nil
}

// UploadPhotos validates and stores a batch of photos
func (s *Service) UploadPhotos(ctx context.Context, actor *authz.Actor, assessmentID int64, up *PhotoUpload) ([]Photo, *Result, error) {
	ctx, span := s.start(ctx, "UploadPhotos", assessmentID)
	defer span.End()

	if s.photos == nil {
		return nil, nil, s.fail(span, errors.New("photo storage is not configured"))
	}
	parent, err := s.load(ctx, assessmentID)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	if err := s.authorize(ctx, actor, authz.ActionUploadPhotos, parent.Resource()); err != nil {
		return nil, nil, s.fail(span, err)
	}

	result, inspected, err := s.validator.ValidatePhotos(parent, up)
	if err != nil {
		return nil, nil, s.fail(span, err)
	}
	if !result.Valid() {
		return nil, result, s.fail(span, s.rejected(ctx, actor, "assessment_photo", assessmentID, result))
	}

	photos := make([]Photo, len(inspected))
	puts := make([]photoPut, len(inspected))
	for i, in := range inspected {
		key := fmt.Sprintf("assessments/%d/%s%s", assessmentID, uuid.NewString(), strings.ToLower(filepath.Ext(in.File.Filename)))
		puts[i] = photoPut{key: key, photo: in}
		photos[i] = Photo{
			AssessmentID:        assessmentID,
			Filename:            filepath.Base(in.File.Filename),
			StorageKey:          key,
			ContentType:         in.ContentType,
			Size:                in.Size,
			Width:               in.Width,
			Height:              in.Height,
			PhotoType:           in.PhotoType,
			Description:         in.Description,
			LocationDescription: in.Location,
			UploadedBy:          actor.ID,
			CreatedAt:           s.now().UTC(),
		}
	}

	if errs := async.Batch(ctx, puts, blobWorkers, "photo upload", blobTimeout, s.putPhoto); len(errs) > 0 {
		// some puts may have landed before the failure
		s.discard(ctx, photos)
		return nil, nil, s.fail(span, errs[0])
	}

	if err := s.repo.AddPhotos(ctx, assessmentID, photos); err != nil {
		s.discard(ctx, photos)
		return nil, nil, s.fail(span, fmt.Errorf("failed to record photos: %w", err))
	}

	s.record(ctx, actor, audit.EventTypePhotoUpload, assessmentID, "photos uploaded", func(e *audit.AuditEvent) {
		e.WithMetadata("count", len(photos))
	})
	return photos, result, nil
}

type photoPut struct {
	key   string
	photo InspectedPhoto
}

func (s *Service) putPhoto(ctx context.Context, p photoPut) error {
	in := p.photo
	rc, err := in.File.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", in.File.Filename, err)
	}
	defer rc.Close()
	if err := s.photos.Put(ctx, p.key, rc, in.Size, in.ContentType); err != nil {
		return fmt.Errorf("failed to store %s: %w", in.File.Filename, err)
	}
	return nil
}

// discard removes the blobs behind photos, logging rather than failing
func (s *Service) discard(ctx context.Context, photos []Photo) {
	ctx = context.WithoutCancel(ctx)
	async.Batch(ctx, photos, blobWorkers, "photo delete", blobTimeout, func(ctx context.Context, p Photo) error {
		if err := s.photos.Delete(ctx, p.StorageKey); err != nil {
			s.log.WithError(err).WithField("key", p.StorageKey).Warn("failed to remove photo blob")
			return err
		}
		return nil
	})
}

func (s *Service) load(ctx context.Context, id int64) (*Assessment, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment %d: %w", id, err)
	}
	return a, nil
}

// authorize evaluates the assessment-family permission implied by target's
// type and records denials
func (s *Service) authorize(ctx context.Context, actor *authz.Actor, action authz.Action, target *authz.Resource) error {
	resource := authz.ResourceAssessment
	if target != nil {
		resource = target.Type
	}
	perm := authz.Permission{Resource: resource, Action: action}
	d := s.engine.Evaluate(actor, perm, target)
	s.metrics.RecordDecision(string(perm.Resource), string(perm.Action), d.Outcome(), string(d.Gate))
	if d.Allowed {
		return nil
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied, idOf(actor), companyOf(actor)).
		WithMessage(d.Reason).
		WithMetadata("permission", perm.String()).
		WithMetadata("gate", string(d.Gate))
	if target != nil && target.ID != 0 {
		event.WithResource(string(target.Type), strconv.FormatInt(target.ID, 10))
	}
	s.log.WithFields(logrus.Fields{
		"permission": perm.String(),
		"gate":       d.Gate,
		"user_id":    idOf(actor),
	}).Info("access denied")
	s.emit(ctx, event)
	return d.Err()
}

// rejected records a failed validation and returns its error
func (s *Service) rejected(ctx context.Context, actor *authz.Actor, entity string, id int64, result *Result) error {
	categories := make([]string, 0)
	for _, c := range result.Categories() {
		categories = append(categories, string(c))
	}
	s.metrics.RecordValidationFailure(entity, categories)

	event := audit.NewEvent(ctx, audit.EventTypeValidationFailed, audit.EventStatusFailure, idOf(actor), companyOf(actor)).
		WithMessage(fmt.Sprintf("%d violations", len(result.Violations))).
		WithMetadata("entity", entity).
		WithMetadata("fields", result.Fields())
	if id != 0 {
		event.WithResource("assessment", strconv.FormatInt(id, 10))
	}
	s.emit(ctx, event)
	return result.Err()
}

func (s *Service) record(ctx context.Context, actor *authz.Actor, eventType audit.EventType, id int64, message string, decorate func(*audit.AuditEvent)) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess, idOf(actor), companyOf(actor)).
		WithResource("assessment", strconv.FormatInt(id, 10)).
		WithMessage(message)
	if decorate != nil {
		decorate(event)
	}
	s.emit(ctx, event)
}

func (s *Service) emit(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.EventType).Warn("failed to write audit event")
	}
}

func (s *Service) start(ctx context.Context, op string, id int64) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "assessment."+op)
	if id != 0 {
		span.SetAttributes(attribute.Int64("assessment.id", id))
	}
	return ctx, span
}

func (s *Service) fail(span trace.Span, err error) error {
	if err != nil && !authz.IsForbidden(err) && !IsValidationFailed(err) && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func transitionMeta(before, after *Assessment) func(*audit.AuditEvent) {
	return func(e *audit.AuditEvent) {
		e.WithMetadata("from", before.Status).WithMetadata("to", after.Status)
	}
}

func eventVerb(event audit.EventType) string {
	switch event {
	case audit.EventTypeAssessmentStatusChange:
		return "status changed"
	default:
		return "updated"
	}
}

// diff captures before and after values of the changed fields
func (s *Service) diff(before, after *Assessment, fields []string) *audit.ChangeDetails {
	if len(fields) == 0 {
		return nil
	}
	b, a := s.fieldValues(before), s.fieldValues(after)
	details := &audit.ChangeDetails{
		Before: make(map[string]interface{}, len(fields)),
		After:  make(map[string]interface{}, len(fields)),
	}
	for _, f := range fields {
		details.Before[f] = b[f]
		details.After[f] = a[f]
	}
	return details
}

// fieldValues returns the assessment keyed by json field name
func (s *Service) fieldValues(a *Assessment) map[string]interface{} {
	out := make(map[string]interface{})
	raw, err := json.Marshal(a)
	if err == nil {
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		s.log.WithError(err).WithField("assessment_id", a.ID).Warn("failed to capture audit field values")
	}
	return out
}

// resolveLead looks up the owner of a newly linked lead. Unknown leads and
// leads of another company are reported on lead_id.
func (s *Service) resolveLead(ctx context.Context, companyID int64, existing *Assessment, result *Result) (*int64, error) {
	if !leadChanged(existing, result.Payload) {
		return nil, nil
	}
	leadID := *result.Payload.LeadID
	owner, err := s.repo.LeadOwner(ctx, companyID, leadID)
	if errors.Is(err, ErrNotFound) {
		result.addError("lead_id", "lead_not_found", CategoryBusinessRule, "lead #%d does not exist", leadID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lead %d: %w", leadID, err)
	}
	return owner, nil
}

func leadChanged(existing *Assessment, p *Payload) bool {
	if p == nil || p.LeadID == nil {
		return false
	}
	return existing == nil || !sameID(existing.LeadID, p.LeadID)
}

// reassigns reports whether the payload moves the assessment to another
// assignee or team
func reassigns(existing *Assessment, p *Payload) bool {
	return (p.AssignedTo != nil && !sameID(existing.AssignedTo, p.AssignedTo)) ||
		(p.TeamID != nil && !sameID(existing.TeamID, p.TeamID))
}

// assignsOnCreate reports whether a new assessment is handed to someone other
// than its creator or to a team the creator does not belong to
func assignsOnCreate(actor *authz.Actor, p *Payload) bool {
	if actor == nil {
		return p.AssignedTo != nil || p.TeamID != nil
	}
	return (p.AssignedTo != nil && *p.AssignedTo != actor.ID) ||
		(p.TeamID != nil && !actor.MemberOf(*p.TeamID))
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func idOf(actor *authz.Actor) int64 {
	if actor == nil {
		return 0
	}
	return actor.ID
}

func companyOf(actor *authz.Actor) int64 {
	if actor == nil {
		return 0
	}
	return actor.CompanyID
}

// nextSortOrder places a new section after every existing one
func nextSortOrder(parent *Assessment) int {
	next := 0
	for _, s := range parent.Sections {
		if s.SortOrder >= next {
			next = s.SortOrder + 1
		}
	}
	return next
}
