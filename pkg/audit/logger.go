package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/fieldops/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// NoOp returns a logger that discards every event
func NoOp() Logger {
	return noOpLogger{}
}

// noOpLogger is a logger that does nothing (used when no logger is configured)
type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error {
	return nil
}

func (noOpLogger) Close() error {
	return nil
}

// NewEvent creates an event with timestamp, request id and actor populated
func NewEvent(ctx context.Context, eventType EventType, status EventStatus, userID, companyID int64) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
	if userID != 0 {
		event.UserID = &userID
	}
	if companyID != 0 {
		event.CompanyID = &companyID
	}
	return event
}

// WithResource sets the resource the event refers to and returns the event
func (e *AuditEvent) WithResource(resourceType, resourceID string) *AuditEvent {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithMessage sets the event message and returns the event
func (e *AuditEvent) WithMessage(message string) *AuditEvent {
	e.Message = message
	return e
}

// WithMetadata adds a metadata entry and returns the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}
