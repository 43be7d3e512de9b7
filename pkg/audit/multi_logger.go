package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// asyncWriteTimeout bounds a single background write so a stalled database
// cannot pin goroutines behind request traffic
const asyncWriteTimeout = 10 * time.Second

// MultiLogger fans every audit event out to several destinations, typically
// the structured log and the audit_logs table.
//
// In async mode (the default) Log returns immediately and writes happen in the
// background, detached from the request context. A failed background write is
// logged with the event type and counted; it never fails the request.
type MultiLogger struct {
	loggers  []Logger
	async    bool
	wg       sync.WaitGroup
	failures atomic.Int64
	log      logrus.FieldLogger
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		async:   true,
		log:     logrus.StandardLogger(),
	}
}

// SetAsync switches between background and inline writes
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// SetFailureLogger sets where failed background writes are reported
func (m *MultiLogger) SetFailureLogger(log logrus.FieldLogger) {
	if log != nil {
		m.log = log
	}
}

// Log writes the event to every destination. Inline writes return the first
// error after every destination was tried.
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	if len(m.loggers) == 0 {
		return nil
	}
	if !m.async {
		var firstErr error
		for _, l := range m.loggers {
			if err := l.Log(ctx, event); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	detached := context.WithoutCancel(ctx)
	for i, l := range m.loggers {
		m.wg.Add(1)
		go func(dest int, l Logger) {
			defer m.wg.Done()
			ctx, cancel := context.WithTimeout(detached, asyncWriteTimeout)
			defer cancel()
			if err := l.Log(ctx, event); err != nil {
				m.failures.Add(1)
				m.log.WithError(err).WithFields(logrus.Fields{
					"event_type":  event.EventType,
					"destination": dest,
				}).Error("audit write failed")
			}
		}(i, l)
	}
	return nil
}

// Wait blocks until every background write has finished
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// Failures returns how many background writes have failed so far
func (m *MultiLogger) Failures() int64 {
	return m.failures.Load()
}

// Close drains pending writes, then closes every destination
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close logger: %w", err)
		}
	}
	return firstErr
}
