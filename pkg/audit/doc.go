// Package audit records security and lifecycle events for compliance and forensics.
//
// # Overview
//
// Authorization denials, validation failures, session changes and every
// assessment mutation are written as AuditEvent values carrying the actor, company, resource and request id.
//
// # Event Types
//
// Sessions: session_create, session_revoke
// Authorization: access_denied, role_change
// Validation: failed
// Assessment: create, update, status_change, delete, approve, section_save,
// section_delete, photo_upload
//
// # Usage Example
//
//	logger := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(log))
//	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied, actor.ID, actor.CompanyID).
//		WithResource("assessment", "42").
//		WithMessage(decision.Reason)
//	logger.Log(ctx, event)
//
// # Retention Policy
//
// RetentionJob purges rows older than RetentionDays on a cron schedule
// (default: 365 days, nightly at 03:00).
package audit
