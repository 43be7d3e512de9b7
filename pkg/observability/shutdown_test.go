package observability

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
		{name: "zero timeout uses default", timeout: 0, expectedTimeout: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(InfoLevel, &bytes.Buffer{})
			server := &http.Server{}

			sm := NewShutdownManager(logger, server, tt.timeout)
			if sm.logger != logger {
				t.Error("Logger not set correctly")
			}
			if sm.server != server {
				t.Error("Server not set correctly")
			}
			if sm.shutdownTimeout != tt.expectedTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.expectedTimeout, sm.shutdownTimeout)
			}
		})
	}
}

func TestNewShutdownManagerWithNilLogger(t *testing.T) {
	sm := NewShutdownManager(nil, nil, time.Second)
	if sm.logger == nil {
		t.Fatal("Expected a default logger")
	}
}

func TestRegisterIgnoresNil(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)
	sm.Register("nil", nil)
	sm.Register("noop", func(context.Context) error { return nil })

	if len(sm.funcs) != 1 {
		t.Errorf("Expected 1 registered function, got %d", len(sm.funcs))
	}
}

func TestShutdownRunsEveryFunction(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(NewLogger(InfoLevel, &buf), nil, time.Second)

	var ran atomic.Int32
	for _, name := range []string{"tracer", "database", "redis"} {
		sm.Register(name, func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ran.Load() != 3 {
		t.Errorf("Expected 3 functions to run, got %d", ran.Load())
	}
	if !strings.Contains(buf.String(), "Graceful shutdown complete") {
		t.Errorf("Expected completion log, got %s", buf.String())
	}
}

func TestShutdownRunsConcurrently(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)

	// each function waits for the other; sequential execution would deadlock
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"a", "b"} {
		sm.Register(name, func(ctx context.Context) error {
			wg.Done()
			wg.Wait()
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestShutdownJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(NewLogger(InfoLevel, &buf), nil, time.Second)

	dbErr := errors.New("close failed")
	sm.Register("database", func(context.Context) error { return dbErr })
	sm.Register("redis", func(context.Context) error { return errors.New("redis gone") })
	sm.Register("tracer", func(context.Context) error { return nil })

	err := sm.Shutdown(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
	if !errors.Is(err, dbErr) {
		t.Errorf("Expected joined error to wrap database error, got %v", err)
	}
	if !strings.Contains(err.Error(), "shutdown completed with 2 errors") {
		t.Errorf("Unexpected message: %v", err)
	}
	if !strings.Contains(buf.String(), `"component":"database"`) {
		t.Errorf("Expected component field in log output, got %s", buf.String())
	}
}

func TestShutdownTimeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)
	release := make(chan struct{})
	defer close(release)
	sm.Register("stuck", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sm.Shutdown(ctx)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
}

func TestShutdownStopsServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), server, time.Second)
	var closed atomic.Bool
	sm.Register("after", func(context.Context) error {
		closed.Store(true)
		return nil
	})

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Server did not stop")
	}
	if !closed.Load() {
		t.Error("Expected registered function to run after server shutdown")
	}
}

func TestWaitForShutdownOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(NewLogger(InfoLevel, &buf), nil, time.Second)
	var ran atomic.Bool
	sm.Register("flush", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sm.WaitForShutdown(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ran.Load() {
		t.Error("Expected shutdown function to run")
	}
	if !strings.Contains(buf.String(), "Context cancelled") {
		t.Errorf("Expected cancellation log, got %s", buf.String())
	}
}
