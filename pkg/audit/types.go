package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSessionCreate EventType = "auth.session_create"
	EventTypeAuthSessionRevoke EventType = "auth.session_revoke"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeAuthzRoleChange   EventType = "authz.role_change"

	// Validation events
	EventTypeValidationFailed EventType = "validation.failed"

	// Assessment mutation events
	EventTypeAssessmentCreate       EventType = "assessment.create"
	EventTypeAssessmentUpdate       EventType = "assessment.update"
	EventTypeAssessmentStatusChange EventType = "assessment.status_change"
	EventTypeAssessmentDelete       EventType = "assessment.delete"
	EventTypeAssessmentApprove      EventType = "assessment.approve"
	EventTypeSectionSave            EventType = "assessment.section_save"
	EventTypeSectionDelete          EventType = "assessment.section_delete"
	EventTypePhotoUpload            EventType = "assessment.photo_upload"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Core fields
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID    *int64 `json:"user_id,omitempty"`
	CompanyID *int64 `json:"company_id,omitempty"`

	// Resource information
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	// Additional details
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// RetentionPolicy defines how long audit logs should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit logs
	RetentionDays int `yaml:"retention_days"`

	// Schedule is the cron expression the purge job runs on
	Schedule string `yaml:"schedule"`
}

// DefaultRetentionPolicy returns a default retention policy (365 days, nightly)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 365,
		Schedule:      "0 3 * * *",
	}
}
