package assessment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/fieldops/pkg/authz"
)

// BookingChecker finds another live assessment booked at the same address
// on the same day
type BookingChecker interface {
	FindBookingConflict(ctx context.Context, companyID int64, address string, date Date, excludeID int64) (*Assessment, error)
}

// Config holds the limits enforced by the validator
type Config struct {
	// ScheduleAheadMonths bounds how far in the future an assessment may be booked
	ScheduleAheadMonths int     `yaml:"schedule_ahead_months"`
	MinDuration         int     `yaml:"min_duration"`
	MaxDuration         int     `yaml:"max_duration"`
	MinArea             float64 `yaml:"min_area"`
	MaxArea             float64 `yaml:"max_area"`

	PhotosPerRequest int   `yaml:"photos_per_request"`
	MaxPhotos        int   `yaml:"max_photos"`
	MaxFileSize      int64 `yaml:"max_file_size"`
	MaxStorage       int64 `yaml:"max_storage"`
	// StorageWarnRatio is the fraction of MaxStorage at which uploads are rejected
	StorageWarnRatio float64 `yaml:"storage_warn_ratio"`
	MinDimension     int     `yaml:"min_dimension"`
	MaxDimension     int     `yaml:"max_dimension"`
	// SniffBytes is how much of each file is scanned for script markers
	SniffBytes int `yaml:"sniff_bytes"`
}

// DefaultConfig returns the production limits
func DefaultConfig() Config {
	return Config{
		ScheduleAheadMonths: 6,
		MinDuration:         15,
		MaxDuration:         480,
		MinArea:             0.1,
		MaxArea:             999999.99,
		PhotosPerRequest:    20,
		MaxPhotos:           100,
		MaxFileSize:         10 << 20,
		MaxStorage:          500 << 20,
		StorageWarnRatio:    0.9,
		MinDimension:        200,
		MaxDimension:        8000,
		SniffBytes:          1024,
	}
}

// Input is everything a rule may read. Rules never mutate it.
type Input struct {
	// Existing is nil when creating
	Existing *Assessment
	Payload  *Payload
	// Merged is Existing with Payload applied
	Merged *Assessment
	Actor  *authz.Actor
	Today  Date
}

// Creating reports whether the request creates a new assessment
func (in *Input) Creating() bool {
	return in.Existing == nil
}

// changed reports whether field is set on create or touched on update
func (in *Input) changed(fields ...string) bool {
	return in.Creating() || in.Payload.Touches(fields...)
}

type rule func(in *Input, result *Result)

// Validator checks assessment payloads, sections and photo uploads
type Validator struct {
	config   Config
	bookings BookingChecker
	rules    []rule
	now      func() time.Time
	loc      *time.Location
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithClock sets the clock used to derive today's date
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// WithLocation sets the time zone calendar dates are evaluated in
func WithLocation(loc *time.Location) ValidatorOption {
	return func(v *Validator) {
		v.loc = loc
	}
}

// NewValidator creates a validator. bookings may be nil to skip the
// duplicate-booking check.
func NewValidator(config Config, bookings BookingChecker, opts ...ValidatorOption) *Validator {
	v := &Validator{
		config:   config,
		bookings: bookings,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.rules = []rule{
		requiredOnCreate,
		v.fieldRules,
		v.dateWindow,
		terminalLock,
		statusTransition,
		completionConsistency,
		areaUnitPresence,
		followUp,
		serviceTypeRules,
	}
	return v
}

// Config returns the validator limits
func (v *Validator) Config() Config {
	return v.config
}

// Today returns the current calendar date in the validator's location
func (v *Validator) Today() Date {
	return NewDate(v.now().In(v.loc))
}

// Validate checks payload against existing (nil on create). Every rule runs and
// all violations are collected. The error return is reserved for a failing
// booking lookup.
func (v *Validator) Validate(ctx context.Context, existing *Assessment, payload *Payload, actor *authz.Actor) (*Result, error) {
	normalized := payload.Normalize(existing)

	base := existing
	if base == nil {
		base = &Assessment{}
		if actor != nil {
			base.CompanyID = actor.CompanyID
		}
	}

	in := &Input{
		Existing: existing,
		Payload:  normalized,
		Merged:   normalized.ApplyTo(base),
		Actor:    actor,
		Today:    v.Today(),
	}

	result := &Result{Payload: normalized}
	for _, r := range v.rules {
		r(in, result)
	}

	if err := v.checkBooking(ctx, in, result); err != nil {
		return nil, err
	}
	return result, nil
}

func requiredOnCreate(in *Input, result *Result) {
	if !in.Creating() {
		return
	}
	p := in.Payload
	required := []struct {
		field string
		value *string
	}{
		{"title", p.Title},
		{"client_name", p.ClientName},
		{"location_address", p.LocationAddress},
	}
	// Empty strings are reported by fieldRules.
	for _, r := range required {
		if r.value == nil {
			result.addError(r.field, "required", CategoryFormat, "%s is required", r.field)
		}
	}
	if p.ServiceType == nil {
		result.addError("service_type", "required", CategoryFormat, "service_type is required")
	}
}

// dateWindow keeps assessment_date within [today, today+N months]. Completed
// assessments may carry a past date.
func (v *Validator) dateWindow(in *Input, result *Result) {
	d := in.Payload.AssessmentDate
	if d == nil {
		return
	}
	if in.Existing != nil && in.Existing.AssessmentDate != nil && in.Existing.AssessmentDate.Equal(d.Time) {
		return
	}

	latest := in.Today.AddMonths(v.config.ScheduleAheadMonths)
	if d.After(latest.Time) {
		result.addError("assessment_date", "date_too_far", CategoryFormat,
			"assessment_date must be on or before %s", latest)
	}
	pastAllowed := in.Existing != nil && in.Existing.Status == StatusCompleted
	if d.Before(in.Today.Time) && !pastAllowed {
		result.addError("assessment_date", "date_in_past", CategoryFormat,
			"assessment_date must be today or later")
	}
}

// terminalLock rejects edits to a completed or cancelled assessment outside
// the terminal whitelist
func terminalLock(in *Input, result *Result) {
	if in.Existing == nil || !in.Existing.IsTerminal() {
		return
	}
	for _, field := range in.Payload.Changes(in.Existing) {
		if field == "status" {
			continue // reported by statusTransition
		}
		if !isTerminalEditable(field) {
			result.addError(field, "terminal_immutable", CategoryTransition,
				"%s cannot change once the assessment is %s", field, in.Existing.Status)
		}
	}
}

func isTerminalEditable(field string) bool {
	for _, f := range authz.TerminalEditableFields {
		if f == field {
			return true
		}
	}
	return false
}

func statusTransition(in *Input, result *Result) {
	to := in.Payload.Status
	if to == nil {
		return
	}
	if in.Creating() {
		if *to != StatusDraft {
			result.addError("status", "initial_status", CategoryTransition,
				"new assessments start in %s, not %s", StatusDraft, *to)
		}
		return
	}
	if err := ValidateTransition(in.Existing.Status, *to); err != nil {
		next := NextStatuses(in.Existing.Status)
		if len(next) == 0 {
			result.addError("status", "invalid_transition", CategoryTransition, "%s; %s is final", err.Error(), in.Existing.Status)
			return
		}
		names := make([]string, len(next))
		for i, s := range next {
			names[i] = string(s)
		}
		result.addError("status", "invalid_transition", CategoryTransition,
			"%s; allowed: %s", err.Error(), strings.Join(names, ", "))
	}
}

// completionConsistency enforces completed <=> 100% and in_progress => < 100%
func completionConsistency(in *Input, result *Result) {
	if !in.changed("status", "completion_percentage") {
		return
	}
	status := in.Merged.Status
	completion := in.Merged.CompletionPercentage

	switch {
	case status == StatusCompleted && completion != 100:
		result.addError("completion_percentage", "completion_mismatch", CategoryCrossField,
			"completion_percentage must be 100 when status is completed, got %d", completion)
	case status == StatusInProgress && completion >= 100:
		result.addError("completion_percentage", "completion_mismatch", CategoryCrossField,
			"completion_percentage must be below 100 while the assessment is in progress")
	case status != StatusCompleted && completion == 100:
		result.addError("completion_percentage", "completion_mismatch", CategoryCrossField,
			"completion_percentage of 100 requires status completed, got %s", status)
	}
}

// areaUnitPresence requires area_unit iff total_area is set
func areaUnitPresence(in *Input, result *Result) {
	if !in.changed("total_area", "area_unit") {
		return
	}
	hasArea := in.Merged.TotalArea != nil
	hasUnit := in.Merged.AreaUnit != ""
	switch {
	case hasArea && !hasUnit:
		result.addError("area_unit", "required_with", CategoryCrossField, "area_unit is required when total_area is present")
	case hasUnit && !hasArea:
		result.addError("area_unit", "prohibited_without", CategoryCrossField, "area_unit requires total_area")
	}
}

// followUp requires a future follow_up_date iff follow_up_required
func followUp(in *Input, result *Result) {
	if !in.changed("follow_up_required", "follow_up_date") {
		return
	}
	p := in.Payload
	required := in.Merged.FollowUpRequired

	if p.FollowUpDate != nil && !required {
		result.addError("follow_up_date", "prohibited_without", CategoryCrossField,
			"follow_up_date requires follow_up_required")
		return
	}
	if required && p.FollowUpDate == nil && in.Merged.FollowUpDate == nil {
		result.addError("follow_up_date", "required_with", CategoryCrossField,
			"follow_up_date is required when follow_up_required is true")
		return
	}
	if p.FollowUpDate == nil {
		return
	}
	if in.Existing != nil && in.Existing.FollowUpDate != nil && in.Existing.FollowUpDate.Equal(p.FollowUpDate.Time) {
		return
	}
	if !p.FollowUpDate.After(in.Today.Time) {
		result.addError("follow_up_date", "date_not_future", CategoryCrossField,
			"follow_up_date must be after %s", in.Today)
	}
}

// hasPhoto reports a photo of type t stored on the assessment or declared in this request
func (in *Input) hasPhoto(t PhotoType) bool {
	if in.Existing != nil && in.Existing.HasPhotoType(t) {
		return true
	}
	for _, pt := range in.Payload.PhotoTypes {
		if pt == t {
			return true
		}
	}
	return false
}

var serviceRuleFields = []string{
	"service_type", "total_area", "urgency_level", "safety_concerns", "overall_risk_score",
	"special_requirements", "access_restrictions", "photo_types",
}

func serviceTypeRules(in *Input, result *Result) {
	if !in.Creating() && !in.Payload.Touches(serviceRuleFields...) && len(in.Payload.PhotoTypes) == 0 {
		return
	}
	// Closed assessments only accept whitelisted edits, which never reach here.
	if in.Existing != nil && in.Existing.IsTerminal() {
		return
	}

	a := in.Merged
	risk := 0
	if a.OverallRiskScore != nil {
		risk = *a.OverallRiskScore
	}
	area := 0.0
	if a.TotalArea != nil {
		area = *a.TotalArea
	}

	switch a.ServiceType {
	case ServiceWaterproofing:
		if a.TotalArea == nil {
			result.addError("total_area", "service_requires", CategoryBusinessRule,
				"total_area is required for waterproofing assessments")
		}
		if a.Urgency == UrgencyEmergency && a.SafetyConcerns == "" {
			result.addError("safety_concerns", "service_requires", CategoryBusinessRule,
				"safety_concerns is required for emergency waterproofing assessments")
		}
		if risk >= 7 && !in.hasPhoto(PhotoSafety) {
			result.addError("photo_types", "photo_required", CategoryBusinessRule,
				"high-risk waterproofing assessments need at least one safety photo")
		}

	case ServicePainting:
		if area > 10000 && a.SpecialRequirements == "" {
			result.addError("special_requirements", "service_requires", CategoryBusinessRule,
				"special_requirements is required for painting areas over 10000")
		}
		if area > 1000 && !in.hasPhoto(PhotoOverview) {
			result.addWarning("photo_types", "photo_recommended", CategoryBusinessRule,
				"large painting assessments should include an overview photo")
		}

	case ServiceSportsCourt:
		if a.TotalArea == nil {
			result.addError("total_area", "service_requires", CategoryBusinessRule,
				"total_area is required for sports court assessments")
		}
		if a.AccessRestrictions == "" {
			result.addError("access_restrictions", "service_requires", CategoryBusinessRule,
				"access_restrictions is required for sports court assessments")
		}
		if !in.hasPhoto(PhotoMeasurement) {
			result.addWarning("photo_types", "photo_recommended", CategoryBusinessRule,
				"sports court assessments should include a measurement photo")
		}

	case ServiceIndustrial:
		if a.SafetyConcerns == "" {
			result.addError("safety_concerns", "service_requires", CategoryBusinessRule,
				"safety_concerns is required for industrial assessments")
		}
		if a.OverallRiskScore == nil {
			result.addError("overall_risk_score", "service_requires", CategoryBusinessRule,
				"overall_risk_score is required for industrial assessments")
		}
		if risk >= 7 && a.SpecialRequirements == "" {
			result.addError("special_requirements", "service_requires", CategoryBusinessRule,
				"special_requirements is required for industrial assessments with risk %d", risk)
		}
		if !in.hasPhoto(PhotoSafety) {
			result.addError("photo_types", "photo_required", CategoryBusinessRule,
				"industrial assessments need safety photo documentation")
		}
		if risk >= 7 && !in.hasPhoto(PhotoCompliance) {
			result.addError("photo_types", "photo_required", CategoryBusinessRule,
				"industrial assessments with risk %d need compliance photo documentation", risk)
		}
	}
}

// checkBooking reports another live assessment at the same address and day
func (v *Validator) checkBooking(ctx context.Context, in *Input, result *Result) error {
	if v.bookings == nil || !in.changed("location_address", "assessment_date", "status") {
		return nil
	}
	a := in.Merged
	if a.Status == StatusCancelled || a.AssessmentDate == nil || a.LocationAddress == "" {
		return nil
	}

	var excludeID int64
	if in.Existing != nil {
		excludeID = in.Existing.ID
	}
	conflict, err := v.bookings.FindBookingConflict(ctx, a.CompanyID, a.LocationAddress, *a.AssessmentDate, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check booking conflicts: %w", err)
	}
	if conflict != nil {
		result.addError("assessment_date", "duplicate_booking", CategoryConflict,
			"assessment #%d is already booked at this address on %s", conflict.ID, a.AssessmentDate)
	}
	return nil
}
