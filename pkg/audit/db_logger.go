package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
	event_type VARCHAR(100) NOT NULL,
	status VARCHAR(20) NOT NULL,
	user_id BIGINT,
	company_id BIGINT,
	resource_type VARCHAR(50),
	resource_id VARCHAR(255),
	request_id VARCHAR(100),
	message TEXT,
	metadata JSONB,
	changes JSONB,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_logs_company_event ON audit_logs(company_id, event_type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
`

const insertEvent = `
INSERT INTO audit_logs (
	timestamp, event_type, status, user_id, company_id,
	resource_type, resource_id, request_id, message, metadata, changes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// DBLogger appends audit events to the audit_logs table.
//
// Events are shared with the other destinations of a MultiLogger, so Log only
// reads the event.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates the audit_logs table if needed and returns a logger
// writing to it
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return &DBLogger{db: db}, nil
}

// Log inserts one row for the event
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadata interface{}
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = raw
	}
	var changes interface{}
	if event.Changes != nil {
		raw, err := json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
		changes = raw
	}

	_, err := l.db.ExecContext(ctx, insertEvent,
		event.Timestamp, string(event.EventType), string(event.Status), event.UserID, event.CompanyID,
		event.ResourceType, event.ResourceID, event.RequestID, event.Message, metadata, changes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Purge removes audit logs older than the cutoff and returns the number removed
func (l *DBLogger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op; the database handle is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}
